// Package binding converts raw request data into typed values and validates them.
//
// Fields are plain data: a name, a source (path, query, body, header or form), a kind and an
// ordered list of rules. They are compiled once against a target type into a [Descriptor]:
//
//	var userFields = binding.MustDescribe[User](
//	    binding.Field{Name: "name", Source: binding.SourceBody, Rules: []binding.Rule{binding.Required()}},
//	    binding.Field{Name: "age", Source: binding.SourceBody, Kind: binding.KindInt,
//	        Rules: []binding.Rule{binding.Range(18, 60)}},
//	    binding.Field{Name: "email", Source: binding.SourceBody, Rules: []binding.Rule{binding.Email()}},
//	)
//
// [Bind] never stops at the first bad field: values that fail to convert become notes, and
// [Validate] reports them together with every rule violation in one [Result]. Only a body that
// cannot be parsed at all fails binding outright.
//
// [Gate] runs both steps as an interceptor and short-circuits with an RFC 7807 problem document
// when the input is invalid.
package binding
