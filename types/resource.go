package types

// ResourceKind is the classifier-facing category of a resource.
// Gateways map provider-native types onto these; the classifier never
// sees provider-specific shapes.
type ResourceKind string

const (
	KindStorage  ResourceKind = "storage"
	KindCompute  ResourceKind = "compute"
	KindDisk     ResourceKind = "disk"
	KindSubnet   ResourceKind = "subnet"
	KindDatabase ResourceKind = "database"
	KindOther    ResourceKind = "other"
)

// Resource is the normalized descriptor a gateway emits for one cloud
// resource. It is read-only input to the classifier.
type Resource struct {
	ID                string            `json:"id"`
	Provider          string            `json:"provider"`
	AccountUnit       string            `json:"account_unit"`
	Kind              ResourceKind      `json:"kind"`
	Type              string            `json:"type"`
	SubType           string            `json:"sub_type"`
	Name              string            `json:"name"`
	Region            string            `json:"region"`
	Status            string            `json:"status"`
	Tags              map[string]string `json:"tags,omitempty"`
	SizeGB            float64           `json:"size_gb,omitempty"`
	Attached          bool              `json:"attached,omitempty"`
	ProvisioningState string            `json:"provisioning_state,omitempty"`
	Subnet            *SubnetInfo       `json:"subnet,omitempty"`
}

// SubnetInfo carries address accounting for subnet-kind resources.
type SubnetInfo struct {
	AddressPrefix string `json:"address_prefix"`
	TotalAddrs    int    `json:"total_addrs"`
	ReservedAddrs int    `json:"reserved_addrs"`
	UsedAddrs     int    `json:"used_addrs"`
	NetworkName   string `json:"network_name,omitempty"`
}

// FreePercent computes the free-address percentage over the usable range.
// A zero or negative usable range yields 0, never a division error.
func (s SubnetInfo) FreePercent() float64 {
	usable := s.TotalAddrs - s.ReservedAddrs
	if usable <= 0 {
		return 0
	}
	free := usable - s.UsedAddrs
	if free < 0 {
		free = 0
	}
	return float64(free) / float64(usable) * 100
}

// Tag returns the tag value for key, or "" when absent.
func (r Resource) Tag(key string) string {
	if r.Tags == nil {
		return ""
	}
	return r.Tags[key]
}

// RelationKind names a dependency set fetched once per scan for orphan
// detection.
type RelationKind string

const (
	RelationDisks          RelationKind = "disks"
	RelationInterfaces     RelationKind = "network_interfaces"
	RelationPublicIPs      RelationKind = "public_ips"
	RelationSecurityGroups RelationKind = "security_groups"
	RelationFlowLogs       RelationKind = "flow_logs"
	RelationNetworks       RelationKind = "networks"
)

// Relation is one dependent object from a relation set. Fields are only
// meaningful for the kinds that populate them.
type Relation struct {
	Kind            RelationKind      `json:"kind"`
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Region          string            `json:"region"`
	Tags            map[string]string `json:"tags,omitempty"`
	SizeGB          float64           `json:"size_gb,omitempty"`
	AttachedTo      string            `json:"attached_to,omitempty"`      // owning compute resource, "" if none
	AttachmentCount int               `json:"attachment_count,omitempty"` // interfaces bound to a security group
	SubnetBindings  int               `json:"subnet_bindings,omitempty"`  // subnets bound to a security group
	RuleCount       int               `json:"rule_count,omitempty"`
	RefID           string            `json:"ref_id,omitempty"` // security-group or network id a flow log references
	Bound           bool              `json:"bound,omitempty"`  // public address has a binding
}
