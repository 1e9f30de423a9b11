package manifest

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// setString sets a string attribute; empty values are omitted.
func setString(body *hclwrite.Body, name, value string) {
	if value != "" {
		body.SetAttributeValue(name, cty.StringVal(value))
	}
}

// setBool sets a bool attribute; false is omitted.
func setBool(body *hclwrite.Body, name string, value bool) {
	if value {
		body.SetAttributeValue(name, cty.True)
	}
}

func setInt(body *hclwrite.Body, name string, value int) {
	body.SetAttributeValue(name, cty.NumberIntVal(int64(value)))
}

func setFloat(body *hclwrite.Body, name string, value *float64) {
	if value != nil {
		body.SetAttributeValue(name, cty.NumberFloatVal(*value))
	}
}

// setStrings sets a list(string) attribute; empty lists are omitted.
func setStrings(body *hclwrite.Body, name string, values []string) {
	if len(values) == 0 {
		return
	}
	vals := make([]cty.Value, len(values))
	for i, v := range values {
		vals[i] = cty.StringVal(v)
	}
	body.SetAttributeValue(name, cty.ListVal(vals))
}

// setInts sets a list(number) attribute; empty lists are omitted.
func setInts[T int | int64](body *hclwrite.Body, name string, values []T) {
	if len(values) == 0 {
		return
	}
	vals := make([]cty.Value, len(values))
	for i, v := range values {
		vals[i] = cty.NumberIntVal(int64(v))
	}
	body.SetAttributeValue(name, cty.ListVal(vals))
}

// setValue sets an already typed attribute; null values are omitted.
func setValue(body *hclwrite.Body, name string, v cty.Value) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return
	}
	body.SetAttributeValue(name, v)
}
