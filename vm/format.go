package vm

import (
	"strconv"
	"strings"
)

// String renders the object for printing. Composite objects are rendered
// in full; an array that contains itself prints as [...] at the point of
// recursion.
func (o *Object) String() string {
	var sb strings.Builder
	writeObject(&sb, o)
	return sb.String()
}

// printItem is one pending piece of output: an object to render, literal
// text, or the end of an array whose contents have all been written.
type printItem struct {
	obj   *Object
	text  string
	leave *Object
	isObj bool
}

func objItem(o *Object) printItem     { return printItem{obj: o, isObj: true} }
func textItem(s string) printItem     { return printItem{text: s} }
func leaveItem(arr *Object) printItem { return printItem{leave: arr} }

// writeObject renders from an explicit worklist, so Vector3 chains of any
// depth print without growing the goroutine stack.
func writeObject(sb *strings.Builder, root *Object) {
	visiting := make(map[*Object]bool)
	todo := []printItem{objItem(root)}

	for len(todo) > 0 {
		it := todo[len(todo)-1]
		todo = todo[:len(todo)-1]

		if it.leave != nil {
			delete(visiting, it.leave)
			continue
		}
		if !it.isObj {
			sb.WriteString(it.text)
			continue
		}

		o := it.obj
		if o == nil {
			sb.WriteString("nil")
			continue
		}
		if o.freed {
			sb.WriteString("<freed ")
			sb.WriteString(o.kind.String())
			sb.WriteString(">")
			continue
		}

		// Pieces are pushed in reverse so they pop in print order.
		switch p := o.data.(type) {
		case *integerPayload:
			sb.WriteString(strconv.FormatInt(int64(p.v), 10))
		case *floatPayload:
			sb.WriteString(strconv.FormatFloat(float64(p.v), 'g', -1, 32))
		case *stringPayload:
			sb.WriteString(strconv.Quote(string(p.b)))
		case *vector3Payload:
			todo = append(todo,
				textItem(")"), objItem(p.z),
				textItem(", "), objItem(p.y),
				textItem(", "), objItem(p.x),
				textItem("("))
		case *arrayPayload:
			if visiting[o] {
				sb.WriteString("[...]")
				continue
			}
			visiting[o] = true
			todo = append(todo, leaveItem(o), textItem("]"))
			for i := len(p.slots) - 1; i >= 0; i-- {
				todo = append(todo, objItem(p.slots[i]))
				if i > 0 {
					todo = append(todo, textItem(", "))
				}
			}
			todo = append(todo, textItem("["))
		}
	}
}
