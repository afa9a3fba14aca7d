// Package shacl validates RDF graphs against SHACL shapes graphs.
//
// The validator covers SHACL Core (targets, property paths and the core
// constraint components), SPARQL-based constraints, and the SHACL Advanced
// Features rule types sh:TripleRule and sh:SPARQLRule.
//
// # Validation
//
// A Validator is built once from a shapes graph and can validate any number
// of data graphs:
//
//	v, err := shacl.New(shapes, shacl.WithAdvanced(true), shacl.WithIterateRules(true))
//	if err != nil {
//	    return err
//	}
//	out, err := v.Validate(ctx, data)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(out.Conforms, out.Report.Text())
//
// Rules run before validation. With iteration enabled they are re-applied
// until a pass infers nothing new, bounded by WithMaxIterations.
//
// # Inference
//
// WithInference(InferenceRDFS) expands the data graph with the RDFS closure
// (subClassOf, subPropertyOf, domain and range) before rules and
// validation. Class checks always follow rdfs:subClassOf chains present in
// the data graph, as SHACL requires.
package shacl
