package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"courierdispatch/internal/courier"
	"courierdispatch/internal/model"
	"courierdispatch/internal/opt"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// SetPool applies connection pool limits. Zero leaves the driver default.
func (p *Postgres) SetPool(maxOpen, maxIdle int) {
	if maxOpen > 0 {
		p.db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		p.db.SetMaxIdleConns(maxIdle)
	}
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the embedded schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.migrateFS(ctx, migrations, "migrations")
}

// MigrateDir applies *.sql files from dir in name order.
func (p *Postgres) MigrateDir(ctx context.Context, dir string) error {
	return p.migrateFS(ctx, os.DirFS(dir), ".")
}

func (p *Postgres) migrateFS(ctx context.Context, fsys fs.FS, dir string) error {
	names, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(dir, "*.sql")))
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// SaveShops replaces the batch for (service, date).
func (p *Postgres) SaveShops(ctx context.Context, serviceID int, planDate string, shops []model.ShopIn) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE service_id=$1 AND plan_date=$2`, serviceID, planDate); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM shops WHERE service_id=$1 AND plan_date=$2`, serviceID, planDate); err != nil {
		return err
	}
	for _, s := range shops {
		_, err = tx.ExecContext(ctx, `INSERT INTO shops (service_id, plan_date, id, lat, lng, work_start, work_end) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			serviceID, planDate, s.ID, s.Location.Lat, s.Location.Lng, nullIfEmpty(s.WorkStart), nullIfEmpty(s.WorkEnd))
		if err != nil {
			return fmt.Errorf("insert shop %s: %w", s.ID, err)
		}
		for _, o := range s.Orders {
			from, err := parseStamp(o.Window.Start)
			if err != nil {
				return fmt.Errorf("order %s: %w", o.ID, err)
			}
			to, err := parseStamp(o.Window.End)
			if err != nil {
				return fmt.Errorf("order %s: %w", o.ID, err)
			}
			var assembled any
			if o.Assembled != "" {
				a, err := parseStamp(o.Assembled)
				if err != nil {
					return fmt.Errorf("order %s: %w", o.ID, err)
				}
				assembled = a
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO orders (service_id, plan_date, id, shop_id, lat, lng, weight, assembled, time_from, time_to, vehicles, completed) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
				serviceID, planDate, o.ID, s.ID, o.Location.Lat, o.Location.Lng, o.Weight, assembled, from, to, joinVehicles(o.Vehicles), o.Completed)
			if err != nil {
				return fmt.Errorf("insert order %s: %w", o.ID, err)
			}
		}
	}
	return tx.Commit()
}

// LoadShops returns the batch with every order, completed ones included.
func (p *Postgres) LoadShops(ctx context.Context, serviceID int, planDate string) ([]model.ShopIn, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, lat, lng, COALESCE(work_start,''), COALESCE(work_end,'') FROM shops WHERE service_id=$1 AND plan_date=$2 ORDER BY id`, serviceID, planDate)
	if err != nil {
		return nil, err
	}
	var shops []model.ShopIn
	index := map[string]int{}
	for rows.Next() {
		var s model.ShopIn
		if err := rows.Scan(&s.ID, &s.Location.Lat, &s.Location.Lng, &s.WorkStart, &s.WorkEnd); err != nil {
			rows.Close()
			return nil, err
		}
		index[s.ID] = len(shops)
		shops = append(shops, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(shops) == 0 {
		return nil, ErrNotFound
	}

	rows, err = p.db.QueryContext(ctx, `SELECT id, shop_id, lat, lng, weight, assembled, time_from, time_to, COALESCE(vehicles,''), completed FROM orders WHERE service_id=$1 AND plan_date=$2 ORDER BY shop_id, id`, serviceID, planDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			o         model.OrderIn
			shopID    string
			assembled sql.NullTime
			from, to  time.Time
			vehicles  string
		)
		if err := rows.Scan(&o.ID, &shopID, &o.Location.Lat, &o.Location.Lng, &o.Weight, &assembled, &from, &to, &vehicles, &o.Completed); err != nil {
			return nil, err
		}
		if assembled.Valid {
			o.Assembled = assembled.Time.Format(time.RFC3339)
		}
		o.Window = model.TimeWindow{Start: from.Format(time.RFC3339), End: to.Format(time.RFC3339)}
		o.Vehicles = splitVehicles(vehicles)
		i, ok := index[shopID]
		if !ok {
			continue
		}
		shops[i].Orders = append(shops[i].Orders, o)
	}
	return shops, rows.Err()
}

func (p *Postgres) MarkShipped(ctx context.Context, serviceID int, planDate string, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range orderIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE orders SET completed=true WHERE service_id=$1 AND plan_date=$2 AND id=$3`, serviceID, planDate, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) SaveCourierTypes(ctx context.Context, profiles []courier.Profile) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, pr := range profiles {
		body, err := json.Marshal(pr)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO courier_types (id, profile) VALUES ($1,$2) ON CONFLICT (id) DO UPDATE SET profile=EXCLUDED.profile`, pr.ID, body)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListCourierTypes(ctx context.Context) ([]courier.Profile, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT profile FROM courier_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []courier.Profile{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var pr courier.Profile
		if err := json.Unmarshal(body, &pr); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) error {
	id, err := uuid.Parse(plan.ID)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO plans (id, service_id, plan_date, variant, total_cost, created_at, body) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET total_cost=EXCLUDED.total_cost, body=EXCLUDED.body`,
		id, plan.ServiceID, plan.PlanDate, plan.Variant, plan.TotalCost, plan.CreatedAt, body)
	return err
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.Plan{}, ErrNotFound
	}
	var body []byte
	err = p.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE id=$1`, uid).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	var plan model.Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

func (p *Postgres) ListPlans(ctx context.Context, serviceID int, planDate string) ([]model.PlanSummary, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, service_id, plan_date, variant, total_cost, created_at FROM plans
WHERE service_id=$1 AND ($2='' OR plan_date=$2) ORDER BY created_at DESC LIMIT 200`, serviceID, planDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PlanSummary{}
	for rows.Next() {
		var (
			s    model.PlanSummary
			cost decimal.Decimal
		)
		if err := rows.Scan(&s.ID, &s.ServiceID, &s.PlanDate, &s.Variant, &cost, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.TotalCost = cost
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveRun(ctx context.Context, run opt.RunRecord) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO plan_runs (service, plan_date, variant, stats, recorded_at) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (service, plan_date, variant) DO UPDATE SET stats=EXCLUDED.stats, recorded_at=EXCLUDED.recorded_at`,
		run.Service, run.PlanDate, run.Variant, stats, run.RecordedAt)
	return err
}

func (p *Postgres) ListRuns(ctx context.Context, service, planDate string) ([]opt.RunRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT service, plan_date, variant, stats, recorded_at FROM plan_runs
WHERE service=$1 AND ($2='' OR plan_date=$2) ORDER BY plan_date, variant`, service, planDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []opt.RunRecord{}
	for rows.Next() {
		var (
			r     opt.RunRecord
			stats []byte
		)
		if err := rows.Scan(&r.Service, &r.PlanDate, &r.Variant, &stats, &r.RecordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stats, &r.Stats); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", model.ErrBadTime, s)
	}
	return t, nil
}

// vehicles are stored as a comma separated list; empty means any vehicle.
func joinVehicles(v []string) any {
	if len(v) == 0 {
		return nil
	}
	return strings.Join(v, ",")
}

func splitVehicles(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
