// Package compiler is the front end of the do language: a streaming
// lexer, a precedence-climbing parser, the AST, a pretty printer, and the
// lowering engine that turns programs into pkg/ir functions.
//
// Pipeline: source → Lexer → Parser → Program → CodeGen.LowerProgram → ir.Function
package compiler
