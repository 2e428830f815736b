package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/frugalcloud/sweeper/types"
)

// tagRego computes the required governance tags a resource is missing.
// A tag present with an empty value counts as missing.
const tagRego = `package sweeper.tags

missing contains name if {
	some name in input.required
	not present(name)
}

present(name) if {
	input.tags[name] != ""
}
`

// TagPolicy is the tag-completeness fallback, evaluated through OPA so
// the required-tag rule stays declarative and swappable.
type TagPolicy struct {
	required []string
	query    rego.PreparedEvalQuery
}

// NewTagPolicy compiles the tag rule once; evaluation is then cheap per
// resource.
func NewTagPolicy(ctx context.Context) (*TagPolicy, error) {
	query, err := rego.New(
		rego.Query("data.sweeper.tags.missing"),
		rego.Module("tags.rego", tagRego),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile tag policy: %w", err)
	}
	return &TagPolicy{required: types.RequiredTags, query: query}, nil
}

func (p *TagPolicy) Name() string { return "tag-completeness" }

// Evaluate emits an untagged finding listing every missing required tag.
func (p *TagPolicy) Evaluate(ctx context.Context, in Input) (*types.Finding, error) {
	missing, err := p.MissingTags(ctx, in.Resource.Tags)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}

	f := newFinding(in, 0.9)
	f.Reasons = ReasonUntagged
	f.Recommendations = RecommendAddTag
	f.MissingTags = types.JoinTokens(missing...)
	return &f, nil
}

// MissingTags evaluates the rego rule against one tag map.
func (p *TagPolicy) MissingTags(ctx context.Context, tags map[string]string) ([]string, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	input := map[string]interface{}{
		"required": p.required,
		"tags":     tags,
	}

	results, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("tag policy evaluation failed: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	values, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected tag policy result type %T", results[0].Expressions[0].Value)
	}

	missing := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing, nil
}
