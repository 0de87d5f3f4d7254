package metrics

import (
	"net/http"

	"github.com/arl/statsviz"
)

// Serve 暴露 /debug/statsviz/ 运行时指标页面
func Serve(addr string) error {
	mux := http.NewServeMux()
	if err := statsviz.Register(mux); err != nil {
		return err
	}
	return http.ListenAndServe(addr, mux)
}
