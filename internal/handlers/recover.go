package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"runtime/debug"
)

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Something went wrong</title></head>
<body>
<h1>Something went wrong</h1>
<p>An error occurred while rendering this component.</p>
<pre>{{.}}</pre>
<a href="/">Reload Application</a>
</body>
</html>
`))

// Recover turns a panic in any handler into the generic error page.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("Recovered from panic", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			if err := errorPage.Execute(w, panicMessage(rec)); err != nil {
				slog.Error("Unable to render error page", "err", err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func panicMessage(rec any) string {
	if err, ok := rec.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(rec)
}
