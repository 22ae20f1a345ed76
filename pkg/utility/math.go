package utility

import (
	"fmt"
	"math"
	"math/rand"
)

func registerMathFuncs(r *Registry) {
	reg(r, "math", "round", "Round to N decimals", func(args []interface{}) (interface{}, error) {
		n, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		decimals := optionalInt(args, 1, 0)
		factor := math.Pow(10, float64(decimals))
		return math.Round(n*factor) / factor, nil
	}, Param{Name: "value", Type: "number", Required: true},
		Param{Name: "decimals", Type: "number", Default: 0})

	reg(r, "math", "floor", "Round down", func(args []interface{}) (interface{}, error) {
		n, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		return math.Floor(n), nil
	}, Param{Name: "value", Type: "number", Required: true})

	reg(r, "math", "ceil", "Round up", func(args []interface{}) (interface{}, error) {
		n, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		return math.Ceil(n), nil
	}, Param{Name: "value", Type: "number", Required: true})

	reg(r, "math", "abs", "Absolute value", func(args []interface{}) (interface{}, error) {
		n, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		return math.Abs(n), nil
	}, Param{Name: "value", Type: "number", Required: true})

	reg(r, "math", "random", "Random float in [0,1)", func(args []interface{}) (interface{}, error) {
		return rand.Float64(), nil
	})

	reg(r, "math", "randomInt", "Random integer in [min,max]", func(args []interface{}) (interface{}, error) {
		min, err := intArg(args, 0)
		if err != nil {
			return nil, err
		}
		max, err := intArg(args, 1)
		if err != nil {
			return nil, err
		}
		if max < min {
			return nil, fmt.Errorf("randomInt: max %d below min %d", max, min)
		}
		return min + rand.Intn(max-min+1), nil
	}, Param{Name: "min", Type: "number", Required: true},
		Param{Name: "max", Type: "number", Required: true})

	reg(r, "math", "sum", "Sum of numbers", aggregate(func(acc, n float64) float64 { return acc + n }, 0, false))
	reg(r, "math", "max", "Largest number", aggregate(math.Max, math.Inf(-1), false))
	reg(r, "math", "min", "Smallest number", aggregate(math.Min, math.Inf(1), false))
	reg(r, "math", "average", "Arithmetic mean", aggregate(func(acc, n float64) float64 { return acc + n }, 0, true))
}

// aggregate folds the numeric arguments (or a single array argument) with fn.
func aggregate(fn func(acc, n float64) float64, initial float64, mean bool) Func {
	return func(args []interface{}) (interface{}, error) {
		values := args
		if len(args) == 1 {
			if arr, ok := args[0].([]interface{}); ok {
				values = arr
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("no numbers to aggregate")
		}
		acc := initial
		for _, v := range values {
			n, err := toFloat(v)
			if err != nil {
				return nil, err
			}
			acc = fn(acc, n)
		}
		if mean {
			acc /= float64(len(values))
		}
		return acc, nil
	}
}
