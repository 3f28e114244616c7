package decorator

import "reflect"

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

func reflectMethod(v any, name string) reflect.Value {
	return reflect.ValueOf(v).MethodByName(name)
}
