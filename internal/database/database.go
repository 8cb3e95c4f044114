package database

import (
	"context"
	"fmt"

	"healthtracker-doctors/internal/config"
	"healthtracker-doctors/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Database struct {
	Pool *pgxpool.Pool
}

func NewConnection(ctx context.Context, cfg *config.Config) (*Database, error) {
	pool, err := pgxpool.New(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	logger.Log.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
	return &Database{Pool: pool}, nil
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// RunMigrations creates the tables the service reads when they are missing.
// The hosted database owns the real schema; this is for local databases.
func RunMigrations(ctx context.Context, db *Database) error {
	referenceTables := `
	CREATE TABLE IF NOT EXISTS genders (
		id INTEGER PRIMARY KEY,
		name VARCHAR(50) NOT NULL
	);
	CREATE TABLE IF NOT EXISTS specializations (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS message_types (
		id INTEGER PRIMARY KEY,
		name VARCHAR(100) NOT NULL
	);
	CREATE TABLE IF NOT EXISTS measurement_types (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		unit VARCHAR(50) NOT NULL DEFAULT '',
		code VARCHAR(100) NOT NULL UNIQUE
	);`

	createUsersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		role_id INTEGER NOT NULL DEFAULT 3,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	createDoctorsTable := `
	CREATE TABLE IF NOT EXISTS doctors (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255),
		surname VARCHAR(255),
		specialization_id INTEGER REFERENCES specializations(id),
		patient_count INTEGER NOT NULL DEFAULT 0,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE
	);`

	createPatientsTable := `
	CREATE TABLE IF NOT EXISTS patients (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID REFERENCES users(id) ON DELETE SET NULL,
		name VARCHAR(255),
		surname VARCHAR(255),
		birth_date DATE,
		gender_id INTEGER REFERENCES genders(id),
		patient_note TEXT,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS doctor_patients (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		doctor_id UUID NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
		patient_id UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		sender_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		receiver_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		message_type_id INTEGER NOT NULL REFERENCES message_types(id),
		content TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	createComplaintTables := `
	CREATE TABLE IF NOT EXISTS complaint_categories (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		description TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS complaint_subcategories (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		category_id UUID NOT NULL REFERENCES complaint_categories(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		symptom_hint TEXT,
		is_critical BOOLEAN NOT NULL DEFAULT FALSE,
		priority_level VARCHAR(50),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS complaints (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		patient_id UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		subcategory_id UUID NOT NULL REFERENCES complaint_subcategories(id),
		description TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		start_date DATE,
		end_date DATE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE
	);`

	createMeasurementsTable := `
	CREATE TABLE IF NOT EXISTS health_measurements (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		patient_id UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		measurement_type_id INTEGER NOT NULL REFERENCES measurement_types(id),
		value NUMERIC NOT NULL,
		measured_at TIMESTAMP WITH TIME ZONE NOT NULL,
		method VARCHAR(100),
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE
	);`

	createIndexes := `
	CREATE INDEX IF NOT EXISTS idx_doctors_user_id ON doctors(user_id);
	CREATE INDEX IF NOT EXISTS idx_patients_user_id ON patients(user_id);
	CREATE INDEX IF NOT EXISTS idx_doctor_patients_doctor_id ON doctor_patients(doctor_id);
	CREATE INDEX IF NOT EXISTS idx_messages_sender_receiver ON messages(sender_user_id, receiver_user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver_sender ON messages(receiver_user_id, sender_user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	CREATE INDEX IF NOT EXISTS idx_complaints_patient_id ON complaints(patient_id);
	CREATE INDEX IF NOT EXISTS idx_health_measurements_patient_type ON health_measurements(patient_id, measurement_type_id, measured_at DESC);`

	// Older local databases predate read tracking.
	addReadColumn := `ALTER TABLE messages ADD COLUMN IF NOT EXISTS is_read BOOLEAN NOT NULL DEFAULT FALSE;`

	migrations := []string{
		referenceTables,
		createUsersTable,
		createDoctorsTable,
		createPatientsTable,
		createMessagesTable,
		createComplaintTables,
		createMeasurementsTable,
		createIndexes,
		addReadColumn,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i, err)
		}
	}

	logger.Log.Info("database migrations completed", zap.Int("steps", len(migrations)))
	return nil
}

func (db *Database) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.Pool.Begin(ctx)
}

func (db *Database) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.Pool.QueryRow(ctx, sql, args...)
}

func (db *Database) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.Pool.Query(ctx, sql, args...)
}

func (db *Database) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return db.Pool.Exec(ctx, sql, args...)
}
