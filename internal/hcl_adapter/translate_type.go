package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// typeExprToCtyType reads the type constraint of a manifest input, such as
// `string`, `list(number)` or `object({ size = number })`. A missing
// expression means any. Collections must name a concrete element type.
func typeExprToCtyType(ctx context.Context, expr hcl.Expression) (cty.Type, error) {
	if expr == nil {
		return cty.DynamicPseudoType, nil
	}
	ty, diags := typeexpr.TypeConstraint(expr)
	if diags.HasErrors() {
		return cty.DynamicPseudoType, diags
	}
	if (ty.IsListType() || ty.IsMapType() || ty.IsSetType()) && ty.ElementType() == cty.DynamicPseudoType {
		return cty.DynamicPseudoType, fmt.Errorf("collection type %s cannot contain type 'any'", ty.FriendlyNameForConstraint())
	}
	ctxlog.FromContext(ctx).Debug("Parsed input type.", "type", ty.FriendlyNameForConstraint())
	return ty, nil
}
