// Package ast is the syntax tree internal/parser builds and
// internal/compiler lowers to bytecode (spec.md §4.4/§4.5). Nodes live in a
// single internal/arena.Arena[Node], not as a web of pointers: this mirrors
// original_source/nova_parser/src/parser.rs, which arena-allocates every
// node and reserves index 0 as a canonical "no node" sentinel so optional
// child slots (an `if` with no `else`, a `for` with no init) need only
// store a NodeID rather than a nilable pointer or a Go interface.
//
// One tagged Node struct covers every syntax form rather than one Go type
// per production: Kind selects which of the generic fields apply. This is
// the same trade the teacher's internal/clockpro metaNode makes (one
// struct, a state tag, and fields reused across cold/hot/test) applied to
// syntax instead of cache state.
//
// © 2025 esvm authors. MIT License.
package ast

import "github.com/Voskan/esvm/internal/arena"

// NodeID addresses a Node in a Tree. The zero NodeID is Empty, the
// sentinel every Tree reserves at index 0.
type NodeID = arena.Handle

// Empty is the canonical "absent" NodeID (an `if` with no `else`, a `for`
// with no `init`, ...).
const Empty NodeID = 0

// Kind discriminates a Node's syntactic form.
type Kind uint8

const (
	KindInvalid Kind = iota // only ever occupies slot 0 (Empty)

	// Expressions.
	KindIdentifier
	KindPrivateIdentifier
	KindNumericLiteral
	KindStringLiteral
	KindBooleanLiteral
	KindNullLiteral
	KindThisExpr
	KindSuperExpr
	KindArrayExpr
	KindObjectExpr
	KindProperty
	KindTemplateLiteral
	KindTaggedTemplateExpr
	KindSpreadElement
	KindBinaryExpr
	KindLogicalExpr
	KindUnaryExpr
	KindUpdateExpr
	KindAssignExpr
	KindConditionalExpr
	KindSequenceExpr
	KindCallExpr
	KindNewExpr
	KindMemberExpr
	KindFunctionExpr
	KindArrowFunctionExpr
	KindClassExpr
	KindYieldExpr
	KindAwaitExpr

	// Patterns (destructuring targets, spec.md §9 open question: implemented).
	KindObjectPattern
	KindArrayPattern
	KindAssignmentPattern
	KindRestElement

	// Statements.
	KindProgram
	KindBlockStmt
	KindExpressionStmt
	KindEmptyStmt
	KindDebuggerStmt
	KindVariableDeclaration
	KindVariableDeclarator
	KindFunctionDeclaration
	KindClassDeclaration
	KindClassBody
	KindMethodDefinition
	KindPropertyDefinition
	KindIfStmt
	KindForStmt
	KindForInStmt
	KindForOfStmt
	KindWhileStmt
	KindDoWhileStmt
	KindReturnStmt
	KindBreakStmt
	KindContinueStmt
	KindThrowStmt
	KindTryStmt
	KindCatchClause
	KindSwitchStmt
	KindSwitchCase
	KindLabeledStmt

	// Modules (spec.md §4.8).
	KindImportDeclaration
	KindImportSpecifier
	KindImportDefaultSpecifier
	KindImportNamespaceSpecifier
	KindExportNamedDeclaration
	KindExportDefaultDeclaration
	KindExportAllDeclaration
	KindExportSpecifier
)

// Flag bits cover the boolean modifiers scattered across many node kinds
// (function async/generator, method static/computed/kind, declaration
// var/let/const, member optional-chaining).
type Flag uint16

const (
	FlagAsync Flag = 1 << iota
	FlagGenerator
	FlagStatic
	FlagComputed
	FlagOptional  // `?.` member/call
	FlagShorthand // object literal shorthand property
	FlagMethod
	FlagGetter
	FlagSetter
	FlagVarLet  // 0 = var
	FlagVarConst
	FlagArrow
	FlagDerivedClass // `class X extends Y` (also set for `extends null`) vs `class X`
	FlagExtendsNull  // spec.md §8 scenario 6: `class extends null`
	FlagTypeOf       // `typeof` unary, needs no ReferenceError on unresolved identifier
)

// Has reports whether f is set in flags.
func (flags Flag) Has(f Flag) bool { return flags&f != 0 }

// Node is one arena slot. Which fields are meaningful is determined by
// Kind; unused fields are simply zero.
type Node struct {
	Kind  Kind
	Start int // byte offset in source, for diagnostics and Function#toString
	End   int
	Flags Flag

	// Scalar payloads.
	Name         string  // identifiers, labels, private names (without '#'), import/export names
	StringValue  string  // string/template literal content, already unescaped
	NumberValue  float64 // numeric literal value
	Operator     string  // binary/logical/unary/update/assignment operator text

	// Common single-child slots, reused across node kinds by position
	// rather than by name (Left/Right used for both BinaryExpr and
	// AssignExpr, Test/Consequent/Alternate for both ConditionalExpr and
	// IfStmt, ...).
	Left        NodeID
	Right       NodeID
	Test        NodeID
	Consequent  NodeID
	Alternate   NodeID
	Object      NodeID // MemberExpr
	Property    NodeID // MemberExpr / Property key
	Callee      NodeID // CallExpr / NewExpr
	Init        NodeID // VariableDeclarator / ForStmt
	Update      NodeID // ForStmt
	Body        NodeID // function/loop/if body, single-statement or block
	Id          NodeID // declaration name, class/function identifier
	SuperClass  NodeID // ClassDeclaration/ClassExpr `extends` clause (Empty + FlagExtendsNull => `extends null`)
	Argument    NodeID // UnaryExpr/UpdateExpr/ReturnStmt/ThrowStmt/YieldExpr/SpreadElement/RestElement
	Label       NodeID // BreakStmt/ContinueStmt/LabeledStmt
	Discriminant NodeID // SwitchStmt
	Handler      NodeID // TryStmt catch clause
	Finalizer    NodeID // TryStmt finally block
	Param        NodeID // CatchClause binding pattern

	// Lists, reused across kinds the same way: Children holds statements
	// for a block/program/switch-case/class-body, elements for an
	// array/object literal, arguments for a call/new, parameters for a
	// function, declarators for a variable declaration, specifiers for an
	// import/export.
	Children []NodeID
}

// Tree owns every Node a single parse produced.
type Tree struct {
	nodes *arena.Arena[Node]
}

// NewTree constructs a Tree with Empty already reserved at index 0.
func NewTree() *Tree {
	t := &Tree{nodes: arena.New[Node](256)}
	sentinel := t.nodes.Create(Node{Kind: KindInvalid})
	if sentinel != Empty {
		panic("ast: sentinel did not land at index 0")
	}
	return t
}

// New allocates a node and returns its ID.
func (t *Tree) New(n Node) NodeID { return t.nodes.Create(n) }

// Get returns a pointer to the node at id. Callers must not hold it across
// a call to New, which can grow the backing slice (see internal/arena's
// Get/Create contract).
func (t *Tree) Get(id NodeID) *Node { return t.nodes.Get(id) }

// IsEmpty reports whether id is the Empty sentinel.
func IsEmpty(id NodeID) bool { return id == Empty }

// Len returns how many nodes (including the sentinel) the tree holds.
func (t *Tree) Len() int { return t.nodes.Len() }
