package main

import (
	"context"
	"errors"
	"log"

	"healthtracker-doctors/internal/config"
	"healthtracker-doctors/internal/database"
	"healthtracker-doctors/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type subcategory struct {
	Name       string
	Hint       string
	IsCritical bool
	Priority   string
}

var complaintTree = []struct {
	Name          string
	Subcategories []subcategory
}{
	{"Cardiovascular", []subcategory{
		{"Chest pain", "Pressure or tightness in the chest", true, "high"},
		{"Palpitations", "Racing or irregular heartbeat", false, "medium"},
		{"Swelling in legs", "", false, "low"},
	}},
	{"Metabolic", []subcategory{
		{"Low blood sugar", "Shaking, sweating, confusion", true, "high"},
		{"High blood sugar", "Thirst, frequent urination", false, "medium"},
	}},
	{"General", []subcategory{
		{"Fatigue", "", false, "low"},
		{"Headache", "", false, "low"},
		{"Fever", "Temperature above 38°C", false, "medium"},
	}},
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.New()
	if _, err := logger.Init(cfg.LogLevel, true); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		logger.Log.Fatal("failed to run migrations", zap.Error(err))
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		logger.Log.Fatal("failed to begin transaction", zap.Error(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO genders (id, name) VALUES (1, 'Male'), (2, 'Female'), (3, 'Other') ON CONFLICT (id) DO NOTHING`)
	batch.Queue(`INSERT INTO message_types (id, name) VALUES (1, 'General'), (2, 'General Assessment'), (3, 'Feedback') ON CONFLICT (id) DO NOTHING`)
	for _, name := range []string{"Cardiology", "Endocrinology", "Internal Medicine", "Family Medicine", "Nephrology"} {
		batch.Queue(`INSERT INTO specializations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	}
	for _, m := range []struct{ Name, Unit, Code string }{
		{"Blood Glucose", "mg/dL", "blood_glucose"},
		{"Blood Pressure", "mmHg", "blood_pressure"},
		{"Weight", "kg", "weight"},
		{"Height", "cm", "height"},
		{"Temperature", "°C", "temperature"},
		{"Pulse", "bpm", "pulse"},
		{"Oxygen Saturation", "%", "oxygen_saturation"},
		{"Cholesterol", "mg/dL", "cholesterol"},
		{"Hemoglobin", "g/dL", "hemoglobin"},
		{"BMI", "kg/m²", "bmi"},
	} {
		batch.Queue(`INSERT INTO measurement_types (name, unit, code) VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING`, m.Name, m.Unit, m.Code)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		logger.Log.Fatal("failed to seed reference tables", zap.Error(err))
	}

	for _, cat := range complaintTree {
		var categoryID string
		err := tx.QueryRow(ctx, `SELECT id FROM complaint_categories WHERE name = $1`, cat.Name).Scan(&categoryID)
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.QueryRow(ctx, `INSERT INTO complaint_categories (name) VALUES ($1) RETURNING id`, cat.Name).Scan(&categoryID)
		}
		if err != nil {
			logger.Log.Fatal("failed to seed complaint category", zap.String("category", cat.Name), zap.Error(err))
		}

		for _, sub := range cat.Subcategories {
			var hint *string
			if sub.Hint != "" {
				hint = &sub.Hint
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO complaint_subcategories (category_id, name, symptom_hint, is_critical, priority_level)
				SELECT $1::uuid, $2::varchar, $3::text, $4::boolean, $5::varchar
				WHERE NOT EXISTS (SELECT 1 FROM complaint_subcategories WHERE category_id = $1::uuid AND name = $2::varchar)
			`, categoryID, sub.Name, hint, sub.IsCritical, sub.Priority)
			if err != nil {
				logger.Log.Fatal("failed to seed complaint subcategory", zap.String("subcategory", sub.Name), zap.Error(err))
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Log.Fatal("failed to commit seed", zap.Error(err))
	}
	logger.Log.Info("seeding completed")
}
