package middlewarectx

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/user-management/internal/http/response"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
)

// ForbidAttributes отклоняет JSON-тело, в котором есть один из атрибутов
// attrs. Тело восстанавливается для следующего обработчика.
func ForbidAttributes(log *slog.Logger, attrs ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.ForbidAttributes"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				response.FailDecode(w, r, log, fmt.Errorf("%s: %w", op, err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			if len(bytes.TrimSpace(raw)) > 0 {
				var body map[string]any
				if err := render.DecodeJSON(bytes.NewReader(raw), &body); err != nil {
					response.FailDecode(w, r, log, err)
					return
				}
				for _, attr := range attrs {
					if _, ok := body[attr]; ok {
						response.Fail(w, r, log, apperr.E(apperr.BadRequest,
							fmt.Sprintf("You can't change the '%s' attribute here", attr), nil))
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
