package utility

// registerBuiltins loads every built-in category into the registry.
func registerBuiltins(r *Registry) {
	registerStringFuncs(r)
	registerDateFuncs(r)
	registerMathFuncs(r)
	registerRandomFuncs(r)
	registerValidationFuncs(r)
	registerDataFuncs(r)
	registerCryptoFuncs(r)
	registerSecurityFuncs(r)
	registerEncodingFuncs(r)
	registerNetworkFuncs(r)
	registerFileFuncs(r)
	registerFakerFuncs(r)
}

// reg registers one builtin, ignoring duplicate errors: builtins load once
// into a fresh registry.
func reg(r *Registry, category, name, description string, fn Func, params ...Param) {
	_ = r.Register(category, name, Descriptor{Description: description, Params: params}, fn)
}

func regAsync(r *Registry, category, name, description string, fn AsyncFunc, params ...Param) {
	_ = r.RegisterAsync(category, name, Descriptor{Description: description, Params: params}, fn)
}
