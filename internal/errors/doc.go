// Package errors provides structured, actionable error messages for the
// prowser command line.
//
// Every error has a code that maps to a short message and a longer
// explanation. Errors from the library packages are mapped onto codes by
// Classify, so the CLI can print a hint instead of a bare error chain.
//
// # Error Categories
//
//   - config: prowser.json / prowser.yaml problems (E1xx)
//   - source: documents that could not be fetched (E2xx)
//   - document: documents that fetched but could not be built (E25x)
//   - reconcile: output that could not be brought up to date (E3xx)
//   - cli: usage errors (E4xx)
//
// # Usage
//
//	err := errors.New("E101").
//	    WithLocation("prowser.yaml", 4, 3).
//	    WithSuggestion("serve.port must be a number")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Invalid configuration file
//	//
//	//   prowser.yaml:4:3
//	//
//	//       2 │ serve:
//	//       3 │   host: localhost
//	//   →   4 │   port: eighty
//	//         │   ^
//	//
//	//   Hint: serve.port must be a number
package errors
