// Package env composes the runtime environment of an installed bundle.
//
// Applications assembled from separately staged components need to be told
// where their libraries and plugins live. The RuntimeTable holds that
// knowledge as data: each row matches one or more os/arch pairs and lists
// bindings, each of which turns staged component paths (or system paths)
// into one variable.
//
//	renv, err := env.NewComposer(table, &env.Config{}).Compose(layout, host)
//	if err != nil {
//		return err
//	}
//	return renv.Apply() // appends export lines to the application's config
//
// Apply only ever appends. Lines already present in the config file are
// never rewritten.
package env
