package schema

import (
	"testing"
)

func TestNewTypeAssignsTagsInDeclarationOrder(t *testing.T) {
	d := NewType("Purpose", nil,
		NewVariant("Spend", Field("out_ref", Named("OutRef"))),
		NewVariant("Mint", Field("policy", BytesRef())),
		NewVariant("Withdraw", Field("credential", BytesRef())),
	)
	for i, v := range d.Variants {
		if v.Tag != uint64(i) {
			t.Errorf("variant %s has tag %d, want %d", v.Name, v.Tag, i)
		}
	}
	if got := d.VariantByTag(1); got == nil || got.Name != "Mint" {
		t.Errorf("VariantByTag(1) = %v, want Mint", got)
	}
	if got := d.VariantByTag(3); got != nil {
		t.Errorf("VariantByTag(3) = %v, want nil", got)
	}
	if got := d.VariantByName("Withdraw"); got == nil || got.Tag != 2 {
		t.Errorf("VariantByName(Withdraw) = %v, want tag 2", got)
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    *TypeDescriptor
		wantErr bool
	}{
		{
			"valid",
			NewType("T", nil, NewVariant("A", Field("x", IntRef()))),
			false,
		},
		{
			"no variants",
			NewType("T", nil),
			true,
		},
		{
			"empty name",
			NewType("", nil, NewVariant("A")),
			true,
		},
		{
			"duplicate variant names",
			NewType("T", nil, NewVariant("A"), NewVariant("A")),
			true,
		},
		{
			"duplicate field names",
			NewType("T", nil, NewVariant("A", Field("x", IntRef()), Field("x", IntRef()))),
			true,
		},
		{
			"positional fields may repeat",
			NewType("Pair", nil, NewVariant("Pair", PositionalField(IntRef()), PositionalField(IntRef()))),
			false,
		},
		{
			"undeclared parameter",
			NewType("T", nil, NewVariant("A", Field("x", Param("a")))),
			true,
		},
		{
			"declared parameter",
			NewType("T", []string{"a"}, NewVariant("A", Field("x", Param("a")))),
			false,
		},
		{
			"duplicate parameter",
			NewType("T", []string{"a", "a"}, NewVariant("A")),
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstantiate(t *testing.T) {
	opt := OptionDescriptor()
	inst, err := opt.Instantiate([]TypeRef{IntRef()})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	some := inst.VariantByName("Some")
	if some == nil || len(some.Fields) != 1 {
		t.Fatalf("Some variant malformed: %v", some)
	}
	if !some.Fields[0].Type.Equal(IntRef()) {
		t.Errorf("Some field type = %s, want Int", some.Fields[0].Type)
	}

	// Nested substitution.
	box := NewType("Box", []string{"a"},
		NewVariant("Box", Field("items", ListOf(Param("a")))),
	)
	inst, err = box.Instantiate([]TypeRef{BytesRef()})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	want := ListOf(BytesRef())
	if got := inst.Variants[0].Fields[0].Type; !got.Equal(want) {
		t.Errorf("instantiated field type = %s, want %s", got, want)
	}

	if _, err := box.Instantiate(nil); err == nil {
		t.Error("Instantiate with wrong arity should fail")
	}
}

func TestTypeRefString(t *testing.T) {
	tests := []struct {
		ref  TypeRef
		want string
	}{
		{IntRef(), "Int"},
		{BytesRef(), "ByteArray"},
		{DataRef(), "Data"},
		{ListOf(IntRef()), "List<Int>"},
		{OptionOf(Named("OutRef")), "Option<OutRef>"},
		{MapOf(BytesRef(), IntRef()), "Map<ByteArray, Int>"},
		{Named("Interval", IntRef()), "Interval<Int>"},
	}
	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
