// Package decorate rewrites rendered mkdocstrings API pages: it labels the
// signature, description and members regions of every class or module block
// and folds the block's child entries into collapsible groups per kind.
//
// Decoration is a single synchronous pass over a parsed tree. It never fails;
// missing regions are skipped, and a second pass over a decorated tree is a
// no-op.
package decorate

import (
	"io"
	"log/slog"

	"github.com/dgallion1/docdecor/internal/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Marker classes produced by the documentation renderer.
const (
	ClassDoc       = "doc"
	ClassObject    = "doc-object"
	ClassClass     = "doc-class"
	ClassModule    = "doc-module"
	ClassAttribute = "doc-attribute"
	ClassFunction  = "doc-function"
	ClassContents  = "doc-contents"
	ClassFirst     = "first"
	ClassChildren  = "doc-children"
	ClassSignature = "doc-signature"
)

// Marker classes and texts emitted by the decorator. Stylesheets key off
// these, so they are part of the output contract.
const (
	ClassSectionHeader = "section-header"
	ClassGroupHeading  = "doc-section-heading"
	ClassGroup         = "collapse-children"
	ClassGroupContent  = "collapse-children-content"

	SignatureTitle   = "Signature:"
	DescriptionTitle = "Description:"
	MembersTitle     = "Members:"
)

// Kind is the declared kind of a child documentation entry.
type Kind int

const (
	KindUnknown Kind = iota
	KindModule
	KindAttribute
	KindMethod
)

// Kinds lists the groupable kinds in the order their groups appear.
var Kinds = []Kind{KindModule, KindAttribute, KindMethod}

// Title is the plural heading used for the kind's group.
func (k Kind) Title() string {
	switch k {
	case KindModule:
		return "Modules"
	case KindAttribute:
		return "Attributes"
	case KindMethod:
		return "Methods"
	}
	return ""
}

func (k Kind) String() string {
	if t := k.Title(); t != "" {
		return t
	}
	return "Unknown"
}

// KindOf classifies an entry by its marker class.
func KindOf(n *html.Node) Kind {
	switch {
	case !isObject(n):
		return KindUnknown
	case dom.HasClass(n, ClassModule):
		return KindModule
	case dom.HasClass(n, ClassAttribute):
		return KindAttribute
	case dom.HasClass(n, ClassFunction):
		return KindMethod
	}
	return KindUnknown
}

// Result counts what a pass changed.
type Result struct {
	Blocks  int `json:"blocks"`
	Headers int `json:"headers"`
	Groups  int `json:"groups"`
	Moved   int `json:"moved"`
}

// Changed reports whether the pass mutated the tree.
func (r Result) Changed() bool {
	return r.Headers > 0 || r.Groups > 0
}

// Add accumulates o into r.
func (r *Result) Add(o Result) {
	r.Blocks += o.Blocks
	r.Headers += o.Headers
	r.Groups += o.Groups
	r.Moved += o.Moved
}

// Decorator runs decoration passes.
type Decorator struct {
	log *slog.Logger
}

// New creates a Decorator. A nil logger discards debug output.
func New(log *slog.Logger) *Decorator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Decorator{log: log}
}

var (
	isObject   = dom.WithClasses(ClassDoc, ClassObject)
	isContents = dom.WithClasses(ClassDoc, ClassContents, ClassFirst)
	isChildren = dom.WithClasses(ClassDoc, ClassChildren)
	isMembers  = dom.WithClasses(ClassChildren)
	isSig      = dom.WithClasses(ClassSignature)
	isPara     = dom.IsTag(atom.P)
	isGrouped  = dom.WithClasses(ClassGroupContent)
)

// IsBlock reports whether n is a class or module block.
func IsBlock(n *html.Node) bool {
	return isObject(n) && (dom.HasClass(n, ClassClass) || dom.HasClass(n, ClassModule))
}

// Decorate decorates every block under doc in place.
func (d *Decorator) Decorate(doc *html.Node) Result {
	var res Result
	if doc == nil {
		return res
	}
	// Collect first: grouping relocates nested blocks.
	blocks := dom.FindAll(doc, IsBlock)
	for _, b := range blocks {
		res.Add(d.DecorateBlock(b))
	}
	return res
}

// DecorateBlock decorates a single block. Regions are looked up in the
// block's own subtree; nested blocks and entries are left to their own pass.
func (d *Decorator) DecorateBlock(block *html.Node) Result {
	res := Result{Blocks: 1}

	if sig := dom.Find(block, isSig, isObject); sig != nil {
		if insertHeader(sig, SignatureTitle) {
			res.Headers++
		}
	}

	if contents := dom.Find(block, isContents, isObject); contents != nil {
		if p := dom.Find(contents, isPara, isObject); p != nil && insertHeader(p, DescriptionTitle) {
			res.Headers++
		}
		if m := dom.Find(contents, isMembers, isObject); m != nil && insertHeader(m, MembersTitle) {
			res.Headers++
		}
	}

	if children := dom.Find(block, isChildren, isObject); children != nil {
		groups, moved := d.group(children)
		res.Groups += groups
		res.Moved += moved
	}

	if res.Changed() {
		d.log.Debug("decorated block",
			"id", blockID(block),
			"headers", res.Headers,
			"groups", res.Groups,
			"moved", res.Moved,
		)
	}
	return res
}

// insertHeader places a section header right before target unless one is
// already there.
func insertHeader(target *html.Node, title string) bool {
	if target.Parent == nil {
		return false
	}
	if prev := dom.PrevElementSibling(target); prev != nil && dom.HasClass(prev, ClassSectionHeader) {
		return false
	}
	target.Parent.InsertBefore(dom.NewElement(atom.H4, ClassSectionHeader, title), target)
	return true
}

// group moves the ungrouped entries of children into one collapsed group
// per kind. Groups are placed at the front of children in Kinds order.
func (d *Decorator) group(children *html.Node) (groups, moved int) {
	byKind := make(map[Kind][]*html.Node)
	for _, e := range dom.FindNearest(children, isObject) {
		if dom.HasAncestor(e, children, isGrouped) {
			continue
		}
		if k := KindOf(e); k != KindUnknown {
			byKind[k] = append(byKind[k], e)
		}
	}

	var last *html.Node
	for _, k := range Kinds {
		entries := byKind[k]
		if len(entries) == 0 {
			continue
		}

		heading := dom.NewElement(atom.H4, ClassGroupHeading, k.Title())
		details := dom.NewElement(atom.Details, ClassGroup, "")
		details.AppendChild(dom.NewElement(atom.Summary, "", k.Title()))
		content := dom.NewElement(atom.Div, ClassGroupContent, "")
		details.AppendChild(content)

		for _, e := range entries {
			dom.Detach(e)
			content.AppendChild(e)
		}

		// Resolved after the moves so the anchor is never a relocated entry.
		at := children.FirstChild
		if last != nil {
			at = last.NextSibling
		}
		children.InsertBefore(heading, at)
		children.InsertBefore(details, at)
		last = details

		groups++
		moved += len(entries)
	}
	return groups, moved
}

func blockID(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "id" {
			return a.Val
		}
	}
	if h := dom.Find(n, dom.IsTag(atom.H2), isObject); h != nil {
		return dom.Text(h)
	}
	return ""
}
