package jsonconv

import (
	"reflect"

	"github.com/pyrolite-go/pickle"
)

// Acyclic returns a copy of a decoded pickle value in which every container
// reached again while it is still being copied is replaced by Recursion.
//
// Unlike Plain it keeps the decoded Go types, so the result is suitable for
// printing with %#v.
func Acyclic(v any) any {
	c := converter{active: map[uintptr]bool{}}
	return c.acyclic(v)
}

func (c *converter) acyclic(v any) any {
	switch v := v.(type) {
	case *pickle.List:
		if v == nil {
			return v
		}
		p := reflect.ValueOf(v).Pointer()
		if !c.enter(p) {
			return Recursion
		}
		defer c.leave(p)
		out := pickle.List(c.acyclicSeq(*v))
		return &out
	case pickle.List:
		return pickle.List(c.acyclicSeq(v))
	case pickle.Tuple:
		return pickle.Tuple(c.acyclicSeq(v))
	case []any:
		return c.acyclicSeq(v)

	case pickle.Call:
		return pickle.Call{Callable: v.Callable, Args: pickle.Tuple(c.acyclicSeq(v.Args))}
	case pickle.Ref:
		return pickle.Ref{Pid: c.acyclic(v.Pid)}

	case pickle.Dict:
		if v.Len() == 0 {
			return v
		}
		p := reflect.ValueOf(v).Field(0).Pointer()
		if !c.enter(p) {
			return Recursion
		}
		defer c.leave(p)
		out := pickle.NewDictWithSizeHint(v.Len())
		v.Iter()(func(k, item any) bool {
			out.Set(k, c.acyclic(item))
			return true
		})
		return out
	case map[any]any:
		p := reflect.ValueOf(v).Pointer()
		if !c.enter(p) {
			return Recursion
		}
		defer c.leave(p)
		out := make(map[any]any, len(v))
		for k, item := range v {
			out[k] = c.acyclic(item)
		}
		return out
	}
	return v
}

func (c *converter) acyclicSeq(items []any) []any {
	if items == nil {
		return nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = c.acyclic(item)
	}
	return out
}
