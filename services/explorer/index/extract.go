// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
)

// anonymousName labels classes and structs declared without a name.
const anonymousName = "(anonymous)"

// Extract parses content in the given language and returns its shallow
// signatures.
//
// Extraction rules are per language family, not per language: the C
// family (c, cpp) shares one walker, the script family (javascript,
// typescript, tsx) another, and Go a third. Languages registered
// without extraction rules yield an empty result rather than an error.
func Extract(ctx context.Context, lang *ast.Language, content []byte) ([]*Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled: %w", err)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s: %w", lang.Name, ast.ErrInvalidUTF8)
	}

	parser := lang.NewParser()
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ast.ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled after parse: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%w: no root node", ast.ErrParseFailed)
	}

	sigs := make([]*Signature, 0)
	switch lang.Name {
	case "c", "cpp":
		sigs = extractCFamily(root, content, sigs)
	case "javascript", "typescript", "tsx":
		sigs = extractScriptFamily(root, content, sigs)
	case "go":
		sigs = extractGoFile(root, content, sigs)
	}
	return sigs, nil
}

// text returns the source text covered by n.
func text(n *sitter.Node, content []byte) string {
	start, end := int(n.StartByte()), int(n.EndByte())
	if start < 0 || end > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

// --- C family -------------------------------------------------------

// extractCFamily walks a C or C++ translation unit.
//
// Function definitions and declarations that carry a function
// declarator become Function signatures; class and struct specifiers
// with a body become Class signatures whose member functions are
// Methods. The walk descends through namespaces, linkage blocks and
// preprocessor branches, but never into function bodies or class
// bodies (the class rule owns those).
func extractCFamily(root *sitter.Node, content []byte, sigs []*Signature) []*Signature {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type() {
		case "function_definition", "declaration":
			if decl := findFunctionDeclarator(n); decl != nil {
				where := WhereDeclaration
				if n.Type() == "function_definition" {
					where = WhereDefinition
				}
				if sig := functionFromDeclarator(decl, content, where); sig != nil {
					sigs = append(sigs, sig)
				}
				continue
			}
		case "class_specifier", "struct_specifier":
			if cls := classFromSpecifier(n, content); cls != nil {
				sigs = append(sigs, cls)
			}
			continue
		}

		// Push children reversed so signatures come out in source order.
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.NamedChild(i))
		}
	}
	return sigs
}

// findFunctionDeclarator locates a function_declarator among a node's
// named children, looking through pointer and reference wrappers so
// "int *f(void)" and "T &f()" resolve like plain declarators.
func findFunctionDeclarator(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "function_declarator":
			return child
		case "pointer_declarator", "reference_declarator":
			if fd := findFunctionDeclarator(child); fd != nil {
				return fd
			}
		}
	}
	return nil
}

// functionFromDeclarator builds a Function signature from a
// function_declarator. Returns nil when no name can be resolved.
func functionFromDeclarator(decl *sitter.Node, content []byte, where Where) *Signature {
	name := declaratorName(decl, content)
	if name == "" {
		return nil
	}
	return &Signature{
		Kind:   KindFunction,
		Name:   name,
		Params: parameterTexts(decl, content),
		Where:  where,
	}
}

// declaratorName extracts the declared name. Qualified identifiers win
// over bare ones so "Account::sum" survives verbatim.
func declaratorName(decl *sitter.Node, content []byte) string {
	var bare string
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		child := decl.NamedChild(i)
		switch child.Type() {
		case "qualified_identifier":
			return text(child, content)
		case "identifier", "field_identifier", "destructor_name", "operator_name":
			if bare == "" {
				bare = text(child, content)
			}
		}
	}
	return bare
}

// parameterTexts returns the verbatim text of each parameter
// declaration in the declarator's parameter list, in order.
func parameterTexts(decl *sitter.Node, content []byte) []string {
	var params []string
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		child := decl.NamedChild(i)
		if child.Type() != "parameter_list" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			p := child.NamedChild(j)
			switch p.Type() {
			case "parameter_declaration", "optional_parameter_declaration",
				"variadic_parameter_declaration", "variadic_parameter":
				params = append(params, text(p, content))
			}
		}
		break
	}
	return params
}

// classFromSpecifier builds a Class signature from a class_specifier
// or struct_specifier. Specifiers without a body (forward declarations
// and usage sites) return nil.
func classFromSpecifier(n *sitter.Node, content []byte) *Signature {
	cls := &Signature{Kind: KindClass, Name: anonymousName}

	var body *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "type_identifier":
			cls.Name = text(child, content)
		case "field_declaration_list":
			body = child
		}
	}
	if body == nil {
		return nil
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)

		var where Where
		switch member.Type() {
		case "function_definition":
			where = WhereDefinition
		case "field_declaration", "declaration":
			where = WhereDeclaration
		default:
			continue
		}

		decl := findFunctionDeclarator(member)
		if decl == nil {
			continue
		}
		name := declaratorName(decl, content)
		if name == "" {
			continue
		}
		cls.Methods = append(cls.Methods, &Signature{
			Kind:   KindMethod,
			Name:   name,
			Params: parameterTexts(decl, content),
			Where:  where,
		})
	}
	return cls
}

// --- Script family --------------------------------------------------

// extractScriptFamily walks the top level of a JavaScript or
// TypeScript program. Only top-level and export-wrapped declarations
// are indexed; nested functions stay out of the shallow index.
func extractScriptFamily(root *sitter.Node, content []byte, sigs []*Signature) []*Signature {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "export_statement" {
			for j := 0; j < int(node.NamedChildCount()); j++ {
				sigs = scriptDeclaration(node.NamedChild(j), content, sigs)
			}
			continue
		}
		sigs = scriptDeclaration(node, content, sigs)
	}
	return sigs
}

// scriptDeclaration converts one top-level declaration node.
func scriptDeclaration(node *sitter.Node, content []byte, sigs []*Signature) []*Signature {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		if sig := scriptFunction(node, content, WhereDefinition); sig != nil {
			sigs = append(sigs, sig)
		}
	case "function_signature":
		// TypeScript ambient or overload signature, body elsewhere.
		if sig := scriptFunction(node, content, WhereDeclaration); sig != nil {
			sigs = append(sigs, sig)
		}
	case "class_declaration", "abstract_class_declaration":
		sigs = append(sigs, scriptClass(node, content))
	case "lexical_declaration", "variable_declaration":
		sigs = scriptBindings(node, content, sigs)
	}
	return sigs
}

// scriptFunction builds a Function from a function declaration or
// signature node. Anonymous functions (default exports) return nil.
func scriptFunction(node *sitter.Node, content []byte, where Where) *Signature {
	var name string
	var params []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier":
			name = text(child, content)
		case "formal_parameters":
			params = formalParameterTexts(child, content)
		}
	}
	if name == "" {
		return nil
	}
	return &Signature{Kind: KindFunction, Name: name, Params: params, Where: where}
}

// scriptClass builds a Class with its method_definition members.
func scriptClass(node *sitter.Node, content []byte) *Signature {
	cls := &Signature{Kind: KindClass, Name: anonymousName}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier", "type_identifier":
			cls.Name = text(child, content)
		case "class_body":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				member := child.NamedChild(j)
				if member.Type() != "method_definition" {
					continue
				}
				if m := scriptMethod(member, content); m != nil {
					cls.Methods = append(cls.Methods, m)
				}
			}
		}
	}
	return cls
}

// scriptMethod builds a Method from a method_definition.
func scriptMethod(node *sitter.Node, content []byte) *Signature {
	var name string
	var params []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "property_identifier", "private_property_identifier",
			"computed_property_name", "string", "number":
			if name == "" {
				name = text(child, content)
			}
		case "formal_parameters":
			params = formalParameterTexts(child, content)
		}
	}
	if name == "" {
		return nil
	}
	return &Signature{Kind: KindMethod, Name: name, Params: params, Where: WhereDefinition}
}

// scriptBindings extracts function-valued bindings such as
// "const handler = (req) => {...}" as Functions named after the
// binding.
func scriptBindings(node *sitter.Node, content []byte, sigs []*Signature) []*Signature {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}

		var name string
		var fn *sitter.Node
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			child := decl.NamedChild(j)
			switch child.Type() {
			case "identifier":
				name = text(child, content)
			case "arrow_function", "function_expression", "function",
				"generator_function":
				fn = child
			}
		}
		if fn == nil || name == "" {
			continue
		}
		sigs = append(sigs, &Signature{
			Kind:   KindFunction,
			Name:   name,
			Params: functionValueParams(fn, content),
			Where:  WhereDefinition,
		})
	}
	return sigs
}

// functionValueParams reads the parameters of a function-valued
// expression. Arrow functions may have a bare single parameter with no
// parentheses, so field lookup is used instead of positional scanning.
func functionValueParams(fn *sitter.Node, content []byte) []string {
	if list := fn.ChildByFieldName("parameters"); list != nil {
		return formalParameterTexts(list, content)
	}
	if p := fn.ChildByFieldName("parameter"); p != nil {
		return []string{text(p, content)}
	}
	return nil
}

// formalParameterTexts returns the verbatim text of each entry in a
// formal_parameters list. Destructuring patterns and type annotations
// come through as written.
func formalParameterTexts(list *sitter.Node, content []byte) []string {
	var params []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		params = append(params, text(list.NamedChild(i), content))
	}
	return params
}

// --- Go -------------------------------------------------------------

// extractGoFile walks the top level of a Go source file. Functions
// index by name; methods index as "Receiver.Name" with any pointer
// stripped from the receiver type.
func extractGoFile(root *sitter.Node, content []byte, sigs []*Signature) []*Signature {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "function_declaration":
			if sig := goFunction(node, content); sig != nil {
				sigs = append(sigs, sig)
			}
		case "method_declaration":
			if sig := goMethod(node, content); sig != nil {
				sigs = append(sigs, sig)
			}
		}
	}
	return sigs
}

// goFunction builds a Function from a function_declaration. Only the
// first parameter_list counts; a multi-value result is also a
// parameter_list in the Go grammar.
func goFunction(node *sitter.Node, content []byte) *Signature {
	var name string
	var params []string
	seenList := false
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier":
			name = text(child, content)
		case "parameter_list":
			if !seenList {
				seenList = true
				params = goParameterTexts(child, content)
			}
		}
	}
	if name == "" {
		return nil
	}
	return &Signature{Kind: KindFunction, Name: name, Params: params, Where: WhereDefinition}
}

// goMethod builds a Method from a method_declaration. The first
// parameter_list is the receiver, the second the parameters.
func goMethod(node *sitter.Node, content []byte) *Signature {
	var name, receiver string
	var params []string
	seenLists := 0
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "field_identifier":
			name = text(child, content)
		case "parameter_list":
			seenLists++
			switch seenLists {
			case 1:
				receiver = receiverBase(child, content)
			case 2:
				params = goParameterTexts(child, content)
			}
		}
	}
	if name == "" {
		return nil
	}
	if receiver != "" {
		name = receiver + "." + name
	}
	return &Signature{Kind: KindMethod, Name: name, Params: params, Where: WhereDefinition}
}

// goParameterTexts returns the verbatim text of each parameter
// declaration in a Go parameter_list.
func goParameterTexts(list *sitter.Node, content []byte) []string {
	var params []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		switch p.Type() {
		case "parameter_declaration", "variadic_parameter_declaration":
			params = append(params, text(p, content))
		}
	}
	return params
}

// receiverBase returns the receiver's type name with pointer and type
// parameters stripped, so "(l *Loader)" yields "Loader".
func receiverBase(recv *sitter.Node, content []byte) string {
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		p := recv.NamedChild(i)
		if p.Type() != "parameter_declaration" {
			continue
		}
		for j := 0; j < int(p.NamedChildCount()); j++ {
			t := p.NamedChild(j)
			switch t.Type() {
			case "type_identifier":
				return text(t, content)
			case "pointer_type", "generic_type":
				if base := firstTypeIdentifier(t, content); base != "" {
					return base
				}
			}
		}
	}
	return ""
}

// firstTypeIdentifier finds the first type_identifier in a subtree.
func firstTypeIdentifier(n *sitter.Node, content []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "type_identifier" {
			return text(c, content)
		}
		if s := firstTypeIdentifier(c, content); s != "" {
			return s
		}
	}
	return ""
}
