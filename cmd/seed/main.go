package main

import (
	"context"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/appointment-queue/internal/appointment"
	"github.com/clinicore/appointment-queue/internal/config"
	"github.com/clinicore/appointment-queue/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctors, err := seedDoctors(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, 500)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedQueues(context.Background(), pool, doctors, patients); err != nil {
		log.Fatalf("seed queues: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedQueues fills today's and tomorrow's queue for every doctor with
// contiguous positions 1..N.
func seedQueues(ctx context.Context, pool *pgxpool.Pool, doctors, patients []uuid.UUID) error {
	types := []appointment.AppointmentType{
		appointment.TypeConsultation,
		appointment.TypeFollowUp,
		appointment.TypeEmergency,
		appointment.TypeRoutine,
	}
	hospitalID := uuid.New()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, doctorID := range doctors {
		for dayOffset := 0; dayOffset < 2; dayOffset++ {
			date := appointment.DateOf(time.Now().AddDate(0, 0, dayOffset))
			size := gofakeit.Number(3, 12)
			for pos := 1; pos <= size; pos++ {
				patientID := patients[gofakeit.Number(0, len(patients)-1)]
				visitTime := gofakeit.Number(8, 17)

				_, err := tx.Exec(ctx, `
					INSERT INTO appointments (
						id, patient_id, doctor_id, hospital_id, scope_date, visit_time,
						type, status, session_phase, queue_position, symptoms, notes,
						created_at, updated_at
					)
					VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', 'waiting', $8, $9, '', now(), now())
				`, uuid.New(), patientID, doctorID, hospitalID, date.Time(),
					time.Date(0, 1, 1, visitTime, 0, 0, 0, time.UTC).Format("15:04"),
					types[gofakeit.Number(0, len(types)-1)], pos, gofakeit.Sentence(6))
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("seeded %d scoped appointments", total)
	return nil
}
