// Package azure implements the provider gateway on top of the Azure
// resource-manager SDKs. One gateway is bound to one subscription.
package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/sql/armsql"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/frugalcloud/sweeper/providers"
	"github.com/frugalcloud/sweeper/types"
)

func init() {
	providers.Register("azure", NewGateway)
}

// Gateway talks to one Azure subscription.
type Gateway struct {
	subscriptionID string

	vms        *armcompute.VirtualMachinesClient
	disks      *armcompute.DisksClient
	accounts   *armstorage.AccountsClient
	vnets      *armnetwork.VirtualNetworksClient
	nics       *armnetwork.InterfacesClient
	publicIPs  *armnetwork.PublicIPAddressesClient
	nsgs       *armnetwork.SecurityGroupsClient
	watchers   *armnetwork.WatchersClient
	flowLogs   *armnetwork.FlowLogsClient
	sqlServers *armsql.ServersClient
	sqlDBs     *armsql.DatabasesClient
	metrics    *armmonitor.MetricsClient
	costQuery  *armcostmanagement.QueryClient
	subs       *armsubscriptions.Client
}

// NewGateway authenticates with a client-secret credential when the
// environment carries one, otherwise the ambient default credential
// chain.
func NewGateway(ctx context.Context, env types.Environment, creds types.Credentials) (providers.Gateway, error) {
	credential, err := buildCredential(creds)
	if err != nil {
		return nil, err
	}
	return newGateway(env.AccountUnit, credential)
}

func buildCredential(creds types.Credentials) (azcore.TokenCredential, error) {
	if creds.TenantID != "" && creds.ClientID != "" && creds.ClientSecret != "" {
		credential, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build client-secret credential: %w", err)
		}
		return credential, nil
	}
	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build default credential: %w", err)
	}
	return credential, nil
}

func newGateway(subscriptionID string, credential azcore.TokenCredential) (*Gateway, error) {
	vms, err := armcompute.NewVirtualMachinesClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create VM client: %w", err)
	}
	disks, err := armcompute.NewDisksClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create disks client: %w", err)
	}
	accounts, err := armstorage.NewAccountsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage accounts client: %w", err)
	}
	vnets, err := armnetwork.NewVirtualNetworksClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual networks client: %w", err)
	}
	nics, err := armnetwork.NewInterfacesClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create interfaces client: %w", err)
	}
	publicIPs, err := armnetwork.NewPublicIPAddressesClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create public IP client: %w", err)
	}
	nsgs, err := armnetwork.NewSecurityGroupsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create security groups client: %w", err)
	}
	watchers, err := armnetwork.NewWatchersClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create network watchers client: %w", err)
	}
	flowLogs, err := armnetwork.NewFlowLogsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow logs client: %w", err)
	}
	sqlServers, err := armsql.NewServersClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQL servers client: %w", err)
	}
	sqlDBs, err := armsql.NewDatabasesClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQL databases client: %w", err)
	}
	metrics, err := armmonitor.NewMetricsClient(subscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}
	costQuery, err := armcostmanagement.NewQueryClient(credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cost query client: %w", err)
	}
	subs, err := armsubscriptions.NewClient(credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}

	return &Gateway{
		subscriptionID: subscriptionID,
		vms:            vms,
		disks:          disks,
		accounts:       accounts,
		vnets:          vnets,
		nics:           nics,
		publicIPs:      publicIPs,
		nsgs:           nsgs,
		watchers:       watchers,
		flowLogs:       flowLogs,
		sqlServers:     sqlServers,
		sqlDBs:         sqlDBs,
		metrics:        metrics,
		costQuery:      costQuery,
		subs:           subs,
	}, nil
}

func (g *Gateway) Name() string        { return "azure" }
func (g *Gateway) AccountUnit() string { return g.subscriptionID }

// Verify checks the subscription is reachable with the credential.
func (g *Gateway) Verify(ctx context.Context) error {
	_, err := g.subs.Get(ctx, g.subscriptionID, nil)
	if err != nil {
		return fmt.Errorf("failed to get subscription %s: %w", g.subscriptionID, err)
	}
	return nil
}

// resourceGroupOf extracts the resource group segment from an ARM id.
func resourceGroupOf(armID string) string {
	parts := strings.Split(armID, "/")
	for i, part := range parts {
		if strings.EqualFold(part, "resourceGroups") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// stringTags flattens the SDK's pointer-valued tag map.
func stringTags(tags map[string]*string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
