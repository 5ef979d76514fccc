// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package rbtree is a single-threaded, sentinel-leaf red-black tree keyed by
// raw pointer value. It exists to back a hazard domain's indexed retire
// list: insert and search in O(log n), and an O(n) walk-and-destroy
// teardown. A Tree is not safe for concurrent use; the hazard package
// serialises every access to a given Tree through its retire list's mutex.
package rbtree

import "unsafe"

type color bool

const (
	red   color = true
	black color = false
)

// Node is one record in the tree, keyed by the retired pointer itself.
type Node struct {
	key                 uintptr
	ptr                 unsafe.Pointer
	color               color
	left, right, parent *Node
}

// Ptr returns the retired pointer this node indexes.
func (n *Node) Ptr() unsafe.Pointer { return n.ptr }

// Tree is a red-black tree with one shared sentinel standing in for every
// nil leaf, the classic trick that lets rotate/fixup avoid nil checks.
type Tree struct {
	nil  *Node
	root *Node
	size int
}

// New returns an empty Tree.
func New() *Tree {
	sentinel := &Node{color: black}
	sentinel.left, sentinel.right, sentinel.parent = sentinel, sentinel, sentinel
	return &Tree{nil: sentinel, root: sentinel}
}

// Len returns the number of records currently indexed.
func (t *Tree) Len() int { return t.size }

// Search returns the record keyed by p, or nil if p is absent.
func (t *Tree) Search(p unsafe.Pointer) *Node {
	key := uintptr(p)
	n := t.root
	for n != t.nil {
		if key == n.key {
			return n
		}
		if key < n.key {
			n = n.left
		} else {
			n = n.right
		}
	}
	return nil
}

// Insert adds p to the tree. The caller must not insert a duplicate key;
// callers in this module never do, since a retired pointer is removed from
// the index before it could ever be retired a second time.
func (t *Tree) Insert(p unsafe.Pointer) *Node {
	z := &Node{key: uintptr(p), ptr: p, color: red, left: t.nil, right: t.nil, parent: t.nil}

	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		if z.key < x.key {
			x = x.left
		} else {
			x = x.right
		}
	}
	z.parent = y
	switch {
	case y == t.nil:
		t.root = z
	case z.key < y.key:
		y.left = z
	default:
		y.right = z
	}
	t.size++
	t.insertFixup(z)
	return z
}

func (t *Tree) leftRotate(x *Node) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.nil:
		t.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *Tree) rightRotate(x *Node) {
	y := x.left
	x.left = y.right
	if y.right != t.nil {
		y.right.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.nil:
		t.root = y
	case x == x.parent.right:
		x.parent.right = y
	default:
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

func (t *Tree) insertFixup(z *Node) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
		if z == t.root {
			break
		}
	}
	t.root.color = black
}

func (t *Tree) transplant(u, v *Node) {
	switch {
	case u.parent == t.nil:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *Tree) minimum(x *Node) *Node {
	for x.left != t.nil {
		x = x.left
	}
	return x
}

// Delete removes z from the tree. z must have been returned by a prior
// Insert or Search on this same Tree.
func (t *Tree) Delete(z *Node) {
	y := z
	yOriginalColor := y.color
	var x *Node
	switch {
	case z.left == t.nil:
		x = z.right
		t.transplant(z, z.right)
	case z.right == t.nil:
		x = z.left
		t.transplant(z, z.left)
	default:
		y = t.minimum(z.right)
		yOriginalColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}
	t.size--
	if yOriginalColor == black {
		t.deleteFixup(x)
	}
}

func (t *Tree) deleteFixup(x *Node) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}

// WalkAndDestroy visits every record exactly once in post-order (both
// subtrees before their parent), applies destroy to each, and discards the tree's own storage. The Tree must not
// be used afterwards.
func (t *Tree) WalkAndDestroy(destroy func(unsafe.Pointer)) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == t.nil {
			return
		}
		walk(n.left)
		walk(n.right)
		destroy(n.ptr)
	}
	walk(t.root)
	t.root = t.nil
	t.size = 0
}
