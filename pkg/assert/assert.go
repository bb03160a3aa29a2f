package assert

import (
	"fmt"
	"reflect"
	"runtime"
)

// NotCircular 在单例初始化入口调用，检测同一调用栈内的递归初始化
func NotCircular() {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	name := runtime.FuncForPC(pc).Name()
	for i := 2; i < 64; i++ {
		callerPC, _, _, ok := runtime.Caller(i)
		if !ok {
			return
		}
		if runtime.FuncForPC(callerPC).Name() == name {
			panic(fmt.Sprintf("circular initialization detected in %s", name))
		}
	}
}

// NotNil 断言对象非空
func NotNil(v interface{}) {
	if v == nil {
		panic("assert: unexpected nil value")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("assert: unexpected nil %s", rv.Type()))
		}
	}
}
