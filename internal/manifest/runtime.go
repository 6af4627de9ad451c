// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 R2X Contributors

package manifest

// RuntimeBindings is the flattened view of a plugin spec the bridge and
// stage binder work from.
type RuntimeBindings struct {
	EntryModule    string
	EntrySymbol    string
	Implementation ImplementationType
	Kind           PluginKind
	Config         *ConfigSpec
	CallMethod     string
	RequiresStore  bool
	Parameters     []ArgumentSpec
}

// BuildRuntimeBindings derives invocation bindings from a plugin spec.
// The call method falls back to the kind's default when the declaration
// does not name one.
func BuildRuntimeBindings(p *PluginSpec) RuntimeBindings {
	method := p.CallMethod
	if method == "" {
		method = p.Kind.DefaultMethod()
	}

	return RuntimeBindings{
		EntryModule:    p.EntryModule,
		EntrySymbol:    p.EntrySymbol,
		Implementation: p.Implementation,
		Kind:           p.Kind,
		Config:         p.Config,
		CallMethod:     method,
		RequiresStore:  p.Store != nil,
		Parameters:     p.Parameters(),
	}
}

// Target returns the bridge target string: module:symbol for functions and
// upgraders, module:symbol.method for classes with a call method.
func (b RuntimeBindings) Target() string {
	base := b.EntryModule + ":" + b.EntrySymbol
	if b.Implementation == ImplFunction || b.Kind == KindUpgrader || b.CallMethod == "" {
		return base
	}
	return base + "." + b.CallMethod
}

// Parameter returns the named parameter, or nil.
func (b RuntimeBindings) Parameter(name string) *ArgumentSpec {
	for i := range b.Parameters {
		if b.Parameters[i].Name == name {
			return &b.Parameters[i]
		}
	}
	return nil
}

// HasConfigField reports whether the bound config class declares name.
func (b RuntimeBindings) HasConfigField(name string) bool {
	return b.Config != nil && b.Config.Field(name) != nil
}
