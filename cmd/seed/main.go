package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"formpipe/backend/internal/config"
	"formpipe/backend/internal/logging"
	"formpipe/backend/internal/pipeline"
	"formpipe/backend/internal/repository"
	"formpipe/backend/pkg/models"
)

// seedFile is the YAML document describing demo forms and their pipelines.
type seedFile struct {
	Forms []seedForm `yaml:"forms"`
}

type seedForm struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	PublicID    string      `yaml:"public_id"`
	Fields      []seedField `yaml:"fields"`
	Pipeline    *seedPipe   `yaml:"pipeline"`
}

type seedField struct {
	ID       string   `yaml:"id"`
	Type     string   `yaml:"type"`
	Label    string   `yaml:"label"`
	Required bool     `yaml:"required"`
	Options  []string `yaml:"options"`
}

type seedPipe struct {
	Name  string     `yaml:"name"`
	Steps []seedStep `yaml:"steps"`
}

type seedStep struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
	Model  string `yaml:"model"`
}

func main() {
	ctx := context.Background()

	seedPath := flag.String("file", "seed.yaml", "Path to seed definition file")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.NewLogger(strings.ToUpper(cfg.Environment) == "DEV")
	defer logger.Sync()

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	store := repository.NewPostgresStore(pool)

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("Failed to parse seed file: %v", err)
	}

	// Ensure the dev user exists; seeded forms belong to it.
	email := "dev@localhost"
	user, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Info("Creating dev user", "email", email)
		user = &models.User{ID: uuid.New().String(), Email: email, Name: "Dev User"}
		if err := store.CreateUser(ctx, user); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
	} else {
		logger.Info("Found existing user", "id", user.ID)
	}

	existing, err := store.ListForms(ctx, user.ID)
	if err != nil {
		log.Fatalf("Failed to list existing forms: %v", err)
	}
	existingNames := make(map[string]bool)
	for _, f := range existing {
		existingNames[f.Name] = true
	}

	for _, sf := range seed.Forms {
		if existingNames[sf.Name] {
			logger.Info("Skipping existing form", "name", sf.Name)
			continue
		}

		form := &models.Form{
			ID:       uuid.New().String(),
			UserID:   user.ID,
			Name:     sf.Name,
			PublicID: sf.PublicID,
			IsActive: true,
		}
		if sf.Description != "" {
			desc := sf.Description
			form.Description = &desc
		}
		if form.PublicID == "" {
			form.PublicID = strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
		}
		for i, field := range sf.Fields {
			form.Fields = append(form.Fields, models.FormField{
				ID:       field.ID,
				Type:     models.FieldType(field.Type),
				Label:    field.Label,
				Required: field.Required,
				Options:  field.Options,
				Order:    i + 1,
			})
		}

		if err := store.CreateForm(ctx, form); err != nil {
			log.Printf("Failed to create form %s: %v", sf.Name, err)
			continue
		}
		logger.Info("Seeded form", "name", sf.Name, "public_id", form.PublicID)

		if sf.Pipeline == nil {
			continue
		}

		pl := &models.Pipeline{
			ID:       uuid.New().String(),
			FormID:   form.ID,
			Name:     sf.Pipeline.Name,
			IsActive: true,
		}
		for i, step := range sf.Pipeline.Steps {
			s := models.PipelineStep{
				StepNumber: i + 1,
				Name:       step.Name,
				Prompt:     step.Prompt,
			}
			if step.Model != "" {
				model := step.Model
				s.Model = &model
			}
			pl.Steps = append(pl.Steps, s)
		}

		if err := pipeline.ValidatePipeline(pl.Steps); err != nil {
			log.Printf("Skipping invalid pipeline for form %s: %v", sf.Name, err)
			continue
		}
		if err := store.UpsertPipeline(ctx, pl); err != nil {
			log.Printf("Failed to create pipeline for form %s: %v", sf.Name, err)
			continue
		}
		logger.Info("Seeded pipeline", "form", sf.Name, "steps", len(pl.Steps))
	}
	logger.Info("Seeding complete!")
}
