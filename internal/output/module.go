package output

import (
	"github.com/d5/tengo/v2"
)

// ModuleName is the name scripts import the sink binding under.
const ModuleName = "output"

// Module builds the Tengo builtin module that exposes the sink to a
// running script. Its write function forwards all arguments to the sink
// and returns the last one, so a rewritten assignment like
// x := __output__.write(f()) still assigns the value of f().
func Module(sink Sink) map[string]tengo.Object {
	return map[string]tengo.Object{
		"write": &tengo.UserFunction{
			Name: "write",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				values := make([]interface{}, len(args))
				for i, arg := range args {
					values[i] = tengo.ToInterface(arg)
				}
				sink.Write(values...)

				if len(args) == 0 {
					return tengo.UndefinedValue, nil
				}
				return args[len(args)-1], nil
			},
		},
	}
}
