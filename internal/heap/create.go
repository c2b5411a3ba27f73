package heap

import (
	"github.com/Voskan/esvm/internal/arena"
	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

// NewOrdinaryObject allocates a plain object with the given prototype
// (spec.md §3 OrdinaryObject; §4.2 shape_of seeds its root shape).
func (h *Heap) NewOrdinaryObject(proto value.Value, hasProto bool) value.Value {
	root := h.Shapes.RootShape(proto, hasProto)
	handle := h.objects.Create(*object.NewOrdinary(root))
	h.allocSinceGC++
	return value.FromHandle(value.KindObject, handle)
}

// NewArray allocates an empty array exotic object.
func (h *Heap) NewArray(proto value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.arrays.Create(object.ArrayData{OrdinaryObject: *object.NewOrdinary(root)})
	h.allocSinceGC++
	return value.FromHandle(value.KindArray, handle)
}

// NewArrayBuffer allocates a detachable raw byte buffer.
func (h *Heap) NewArrayBuffer(size int) value.Value {
	handle := h.buffers.Create(object.ArrayBufferData{Bytes: make([]byte, size)})
	h.allocSinceGC++
	return value.FromHandle(value.KindArrayBuffer, handle)
}

// ArrayBufferData exposes the raw backing-bytes record, used by the
// TypedArray constructors (internal/vm) to size a view and by
// getTypedArrayElement/setTypedArrayElement (typedarray.go) to read/write it.
func (h *Heap) ArrayBufferData(v value.Value) *object.ArrayBufferData { return h.buffers.Get(v.Handle()) }

// NewTypedArray allocates a typed-array view over buffer.
func (h *Heap) NewTypedArray(proto value.Value, buffer value.Value, kind object.TypedArrayElementKind, byteOffset, length uint32) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.typedArrays.Create(object.TypedArrayData{
		OrdinaryObject: *object.NewOrdinary(root),
		Buffer:         buffer.Handle(),
		ElementKind:    kind,
		ByteOffset:     byteOffset,
		ArrayLength:    length,
	})
	h.allocSinceGC++
	return value.FromHandle(value.KindTypedArray, handle)
}

// NewBuiltinFunction wraps a Go-implemented function.
func (h *Heap) NewBuiltinFunction(proto value.Value, name string, paramCount int, fn object.BuiltinFn) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.functions.Create(object.FunctionData{
		OrdinaryObject: *object.NewOrdinary(root),
		Kind:           object.FuncBuiltin,
		Name:           name,
		ParamCount:     paramCount,
		Native:         fn,
	})
	h.allocSinceGC++
	return value.FromHandle(value.KindBuiltinFunction, handle)
}

// NewECMAScriptFunction wraps a compiled Executable closing over env.
func (h *Heap) NewECMAScriptFunction(proto value.Value, exec *compiler.Executable, env *environment.Environment, kind value.Kind) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.functions.Create(object.FunctionData{
		OrdinaryObject: *object.NewOrdinary(root),
		Kind:           ecmaFunctionKindFor(kind),
		Name:           exec.Name,
		ParamCount:     exec.ParamCount,
		Executable:     exec,
		Closure:        env,
	})
	h.allocSinceGC++
	return value.FromHandle(kind, handle)
}

func ecmaFunctionKindFor(k value.Kind) object.FunctionKind {
	switch k {
	case value.KindConstructor:
		return object.FuncConstructor
	case value.KindGeneratorFunction:
		return object.FuncGenerator
	case value.KindPromiseResolvingFunction:
		return object.FuncPromiseResolving
	default:
		return object.FuncECMAScript
	}
}

// NewClassConstructor allocates a class's constructor function value
// (spec.md §4.5's ClassDefineConstructor/ClassDefineDefaultConstructor).
// exec is nil for a class with no explicit constructor element (the
// synthesized default, internal/vm/class.go's defineDefaultClassConstructor);
// NewECMAScriptFunction cannot be reused for that case since it
// unconditionally dereferences exec's Name/ParamCount. constructorKind is 0
// for a base class, 1 for derived (including `extends null`, spec.md §8
// scenario 6).
func (h *Heap) NewClassConstructor(proto value.Value, exec *compiler.Executable, env *environment.Environment, name string, constructorKind int, homeObject, superConstructor value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	paramCount := 0
	if exec != nil {
		paramCount = exec.ParamCount
		name = exec.Name
	}
	handle := h.functions.Create(object.FunctionData{
		OrdinaryObject:   *object.NewOrdinary(root),
		Kind:             object.FuncConstructor,
		Name:             name,
		ParamCount:       paramCount,
		Executable:       exec,
		Closure:          env,
		HomeObject:       homeObject,
		ConstructorKind:  constructorKind,
		SuperConstructor: superConstructor,
	})
	h.allocSinceGC++
	return value.FromHandle(value.KindConstructor, handle)
}

// NewBoundFunction wraps target with a fixed `this` and prefix arguments
// (Function.prototype.bind, spec.md §3).
func (h *Heap) NewBoundFunction(proto, target, boundThis value.Value, boundArgs []value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.functions.Create(object.FunctionData{
		OrdinaryObject: *object.NewOrdinary(root),
		Kind:           object.FuncBound,
		BoundTarget:    target,
		BoundThis:      boundThis,
		BoundArgs:      boundArgs,
	})
	h.allocSinceGC++
	return value.FromHandle(value.KindBoundFunction, handle)
}

// Executable returns the compiled body behind an ECMAScript/generator
// function Value. Callers must check Kind first.
func (h *Heap) Executable(v value.Value) *compiler.Executable {
	return h.functions.Get(v.Handle()).Executable
}

// ClosureEnvironment returns the environment an ECMAScript function closed
// over.
func (h *Heap) ClosureEnvironment(v value.Value) *environment.Environment {
	return h.functions.Get(v.Handle()).Closure
}

// FunctionData exposes the raw record for call/construct dispatch
// (internal/vm needs BoundTarget/Native/HomeObject directly).
func (h *Heap) FunctionData(v value.Value) *object.FunctionData {
	return h.functions.Get(v.Handle())
}

// NewProxy allocates a Proxy exotic object (spec.md §4.7 "proxies' trap
// dispatch").
func (h *Heap) NewProxy(target, handler value.Value) value.Value {
	handle := h.proxies.Create(object.ProxyData{Target: target, Handler: handler})
	h.allocSinceGC++
	return value.FromHandle(value.KindProxy, handle)
}

func (h *Heap) ProxyData(v value.Value) *object.ProxyData { return h.proxies.Get(v.Handle()) }

// NewPromise allocates a pending promise.
func (h *Heap) NewPromise(proto value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.promises.Create(object.PromiseData{OrdinaryObject: *object.NewOrdinary(root), State: object.PromisePending})
	h.allocSinceGC++
	return value.FromHandle(value.KindPromise, handle)
}

func (h *Heap) PromiseData(v value.Value) *object.PromiseData { return h.promises.Get(v.Handle()) }

func (h *Heap) NewMap(proto value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.maps.Create(object.MapData{OrdinaryObject: *object.NewOrdinary(root)})
	h.allocSinceGC++
	return value.FromHandle(value.KindMap, handle)
}

func (h *Heap) MapData(v value.Value) *object.MapData { return h.maps.Get(v.Handle()) }

func (h *Heap) NewSet(proto value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.sets.Create(object.SetData{OrdinaryObject: *object.NewOrdinary(root)})
	h.allocSinceGC++
	return value.FromHandle(value.KindSet, handle)
}

func (h *Heap) SetData(v value.Value) *object.SetData { return h.sets.Get(v.Handle()) }

func (h *Heap) NewWeakMap(proto value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.weakMaps.Create(object.WeakMapData{OrdinaryObject: *object.NewOrdinary(root)})
	h.allocSinceGC++
	return value.FromHandle(value.KindWeakMap, handle)
}

func (h *Heap) WeakMapData(v value.Value) *object.WeakMapData { return h.weakMaps.Get(v.Handle()) }

func (h *Heap) NewWeakSet(proto value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.weakSets.Create(object.WeakSetData{OrdinaryObject: *object.NewOrdinary(root)})
	h.allocSinceGC++
	return value.FromHandle(value.KindWeakSet, handle)
}

func (h *Heap) WeakSetData(v value.Value) *object.WeakSetData { return h.weakSets.Get(v.Handle()) }

// NewWeakRef allocates a WeakRef targeting v (v must be object-like).
func (h *Heap) NewWeakRef(target value.Value) value.Value {
	handle := h.weakRefs.Create(weakRefData{Target: target, Alive: true})
	h.allocSinceGC++
	return value.FromHandle(value.KindWeakRef, handle)
}

// WeakRefTarget returns the target and whether it is still alive (spec.md
// §4.1's weak-reference sweep predicate; dies during a collection, not
// eagerly).
func (h *Heap) WeakRefTarget(v value.Value) (value.Value, bool) {
	d := h.weakRefs.Get(v.Handle())
	return d.Target, d.Alive
}

func (h *Heap) NewFinalizationRegistry(proto, cleanupCallback value.Value) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.finalizationRegistries.Create(finalizationRegistryData{
		OrdinaryObject:  *object.NewOrdinary(root),
		CleanupCallback: cleanupCallback,
	})
	h.allocSinceGC++
	return value.FromHandle(value.KindFinalizationRegistry, handle)
}

// RegisterFinalizer adds a (target, heldValue, [token]) tuple to a
// FinalizationRegistry.
func (h *Heap) RegisterFinalizer(registry, target, heldValue, token value.Value, hasToken bool) {
	d := h.finalizationRegistries.Get(registry.Handle())
	d.Entries = append(d.Entries, finalizationEntry{
		Target: target, HeldValue: heldValue, Alive: true,
		UnregisterToken: token, HasToken: hasToken,
	})
}

// NewIterator allocates an iterator object over target.
func (h *Heap) NewIterator(proto, target value.Value, kind object.IteratorKind) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.iterators.Create(object.IteratorData{OrdinaryObject: *object.NewOrdinary(root), Kind: kind, Target: target})
	h.allocSinceGC++
	return value.FromHandle(iteratorValueKind(kind), handle)
}

func iteratorValueKind(k object.IteratorKind) value.Kind {
	switch k {
	case object.IterString:
		return value.KindStringIterator
	case object.IterMap:
		return value.KindMapIterator
	case object.IterSet:
		return value.KindSetIterator
	default:
		return value.KindArrayIterator
	}
}

func (h *Heap) IteratorData(v value.Value) *object.IteratorData { return h.iterators.Get(v.Handle()) }

// NewGeneratorObject allocates a suspended generator's control object.
func (h *Heap) NewGeneratorObject(proto value.Value, exec *compiler.Executable, env *environment.Environment) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.generators.Create(generatorData{
		OrdinaryObject: *object.NewOrdinary(root),
		Executable:     exec,
		Closure:        env,
	})
	h.allocSinceGC++
	return value.FromHandle(value.KindGeneratorObject, handle)
}

// NewModuleNamespace allocates a module's namespace exotic object.
func (h *Heap) NewModuleNamespace(proto value.Value, moduleIndex arena.Handle, exportNames []value.PropertyKey) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.moduleNamespaces.Create(object.ModuleNamespaceData{
		OrdinaryObject: *object.NewOrdinary(root),
		ModuleIndex:    moduleIndex,
		ExportNames:    exportNames,
	})
	h.allocSinceGC++
	return value.FromHandle(value.KindModuleNamespace, handle)
}

func (h *Heap) ModuleNamespaceData(v value.Value) *object.ModuleNamespaceData {
	return h.moduleNamespaces.Get(v.Handle())
}

// NewError allocates an Error/TypeError/RangeError/... object (spec.md §6's
// "TypeError on null.x" scenario constructs one of these).
func (h *Heap) NewError(proto value.Value, kind object.ErrorKind, message, stack string) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.errors.Create(object.ErrorData{
		OrdinaryObject: *object.NewOrdinary(root),
		Kind:           kind,
		Message:        message,
		Stack:          stack,
	})
	h.allocSinceGC++
	return value.FromHandle(value.KindError, handle)
}

func (h *Heap) ErrorData(v value.Value) *object.ErrorData { return h.errors.Get(v.Handle()) }

func (h *Heap) NewDate(proto value.Value, epochMillis float64, isInvalid bool) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.dates.Create(object.DateData{OrdinaryObject: *object.NewOrdinary(root), EpochMillis: epochMillis, IsInvalid: isInvalid})
	h.allocSinceGC++
	return value.FromHandle(value.KindDate, handle)
}

func (h *Heap) NewRegExp(proto value.Value, source, flags string) value.Value {
	root := h.Shapes.RootShape(proto, true)
	handle := h.regexps.Create(object.RegExpData{OrdinaryObject: *object.NewOrdinary(root), Source: source, Flags: flags})
	h.allocSinceGC++
	return value.FromHandle(value.KindRegExp, handle)
}

/* -------------------------------------------------------------------------
   Uniform OrdinaryObject access
   ------------------------------------------------------------------------- */

// ordinaryOf returns the embedded OrdinaryObject for any object-like value,
// regardless of which exotic arena backs it. Every Data struct in
// internal/object embeds OrdinaryObject as its first field, so this single
// switch is the one place that needs to know the kind->arena mapping; every
// internal-methods algorithm in methods.go goes through it instead of
// repeating the switch.
func (h *Heap) ordinaryOf(v value.Value) *object.OrdinaryObject {
	switch v.Kind() {
	case value.KindObject:
		return h.objects.Get(v.Handle())
	case value.KindArray:
		return &h.arrays.Get(v.Handle()).OrdinaryObject
	case value.KindArrayBuffer:
		return nil // ArrayBufferData has no shape/OrdinaryObject: raw bytes only
	case value.KindTypedArray:
		return &h.typedArrays.Get(v.Handle()).OrdinaryObject
	case value.KindBoundFunction, value.KindBuiltinFunction, value.KindECMAScriptFunction,
		value.KindConstructor, value.KindPromiseResolvingFunction, value.KindGeneratorFunction:
		return &h.functions.Get(v.Handle()).OrdinaryObject
	case value.KindPromise:
		return &h.promises.Get(v.Handle()).OrdinaryObject
	case value.KindMap:
		return &h.maps.Get(v.Handle()).OrdinaryObject
	case value.KindSet:
		return &h.sets.Get(v.Handle()).OrdinaryObject
	case value.KindWeakMap:
		return &h.weakMaps.Get(v.Handle()).OrdinaryObject
	case value.KindWeakSet:
		return &h.weakSets.Get(v.Handle()).OrdinaryObject
	case value.KindArrayIterator, value.KindStringIterator, value.KindMapIterator, value.KindSetIterator:
		return &h.iterators.Get(v.Handle()).OrdinaryObject
	case value.KindGeneratorObject:
		return &h.generators.Get(v.Handle()).OrdinaryObject
	case value.KindModuleNamespace:
		return &h.moduleNamespaces.Get(v.Handle()).OrdinaryObject
	case value.KindError:
		return &h.errors.Get(v.Handle()).OrdinaryObject
	case value.KindDate:
		return &h.dates.Get(v.Handle()).OrdinaryObject
	case value.KindRegExp:
		return &h.regexps.Get(v.Handle()).OrdinaryObject
	case value.KindFinalizationRegistry:
		return &h.finalizationRegistries.Get(v.Handle()).OrdinaryObject
	default:
		return nil
	}
}

// ArrayData exposes the raw array record for internal/vm's array-literal,
// push/spread and destructuring-rest handling. The length exotic in
// methods.go is Get-only; callers that add elements are responsible for
// keeping Length in sync themselves, which SetArrayIndex does.
func (h *Heap) ArrayData(v value.Value) *object.ArrayData { return h.arrays.Get(v.Handle()) }

// SetArrayIndex defines the element at index on an array, extending Length
// when index falls past the current end (spec.md §4.7's Array exotic
// [[DefineOwnProperty]], simplified to the common "append or overwrite"
// case internal/vm's bytecode ops need).
func (h *Heap) SetArrayIndex(v value.Value, index uint32, val value.Value) {
	h.DefineOwnProperty(v, value.IntegerKey(index), object.PropertyDescriptor{
		Value: val,
		Attr:  shape.Attr{Writable: true, Enumerable: true, Configurable: true},
	})
	arr := h.arrays.Get(v.Handle())
	if index >= arr.Length {
		arr.Length = index + 1
	}
}

// GetArrayIndex reads the element at index, or Undefined if absent.
func (h *Heap) GetArrayIndex(v value.Value, index uint32) value.Value {
	result, _, _ := h.Get(v, value.IntegerKey(index))
	return result
}

// ShapeOf returns the current shape ID of an object-like value.
func (h *Heap) ShapeOf(v value.Value) (shape.ID, bool) {
	o := h.ordinaryOf(v)
	if o == nil {
		return 0, false
	}
	return o.Shape, true
}
