package reports

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Source собирает снимки леджеров на момент запроса.
type Source func(ctx context.Context) (Input, error)

// Handler отдаёт месячный отчёт: CSV по умолчанию, ?format=xlsx — Excel.
// Период задаётся ?from=YYYY-MM&to=YYYY-MM, по умолчанию последние 6 месяцев.
func Handler(src Source, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		now := time.Now().UTC()
		from := now.AddDate(0, -5, 0)
		to := now
		var err error
		if v := r.URL.Query().Get("from"); v != "" {
			if from, err = time.Parse("2006-01", v); err != nil {
				http.Error(w, "bad from: want YYYY-MM", http.StatusBadRequest)
				return
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			if to, err = time.Parse("2006-01", v); err != nil {
				http.Error(w, "bad to: want YYYY-MM", http.StatusBadRequest)
				return
			}
		}
		if to.Before(from) {
			http.Error(w, "to is before from", http.StatusBadRequest)
			return
		}

		in, err := src(r.Context())
		if err != nil {
			log.Error("report source failed", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		rows := BuildMonthly(in, from, to)

		if r.URL.Query().Get("format") == "xlsx" {
			data, err := WriteXLSX(rows)
			if err != nil {
				log.Error("xlsx export failed", "err", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "monthly-report.xlsx"))
			_, _ = w.Write(data)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		if err := WriteCSV(w, rows); err != nil {
			log.Error("csv export failed", "err", err)
		}
	})
}
