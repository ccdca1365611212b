// Package rewrite implements the tracegen transformation pipeline.
//
// The pipeline is strictly linear and runs once per marked function:
//
//   - Acquisition
//     Locates declarations carrying the marker directive and validates
//     that each one is a function whose last result is error.
//
//   - Site identification
//     Walks the function body, read-only, and collects every statement
//     matching a call-then-propagate shape: a return of a guarded error
//     variable, or a tail return of a single call expression. Anything
//     the matcher cannot safely classify passes through untouched.
//
//   - Site rewriting
//     Builds a replacement sub-tree per site. The replacement calls the
//     configured context operation with the enclosing function name and
//     the site's file and line baked in as literals. Success-path values,
//     evaluation order and side effects are unchanged.
//
//   - Reassembly and emission
//     Splices replacements back via copy-on-write substitution, keeps
//     the signature intact, strips the marker directive and prints the
//     resulting file.
//
// Input trees are never mutated in place. A sub-tree either gets a newly
// built replacement or is shared with the output as-is, so the transform
// is total and deterministic: the same input always produces the same
// output, and a file without matched sites is returned byte-identical.
package rewrite
