package ai

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"peiplan_backend/internal/model"
)

//go:embed prompts/*.prompt.md
var promptFS embed.FS

func mustPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

var (
	peiSystemPrompt        = mustPrompt("pei.prompt.md")
	weeklyPlanSystemPrompt = mustPrompt("weekly_plan.prompt.md")
)

// PEIContext carries everything the generator needs to write a plan.
type PEIContext struct {
	Student             *model.Student
	Teacher             *model.Profile
	Classroom           *model.Classroom
	School              *model.School
	StartDate           time.Time
	EndDate             time.Time
	FormQuestions       datatypes.JSON
	SecondFormQuestions datatypes.JSON

	// Renewal context.
	PreviousPEI *model.PEI
	LatestNotes []model.Note
}

type WeeklyPlanContext struct {
	Student       *model.Student
	Teacher       *model.Profile
	CurrentPEI    *model.PEI
	WeekStart     time.Time
	WeekEnd       time.Time
	FormQuestions datatypes.JSON
}

// ContentService builds prompts, runs the generator, and writes an AIRequest
// audit row for every call, success or failure.
type ContentService struct {
	db        *gorm.DB
	generator Generator
	model     string
}

func NewContentService(db *gorm.DB, generator Generator, modelName string) *ContentService {
	return &ContentService{db: db, generator: generator, model: modelName}
}

func (s *ContentService) CreatePEIContent(ctx context.Context, cfg PEIContext) (string, error) {
	prompt := fmt.Sprintf(`# Com base nos seguintes dados:

## Início do PEI
%s

## Fim do PEI
%s

## Aluno
%s

## Turma do aluno
%s

## Escola do aluno
%s

## Professor responsável pelo PEI
%s

## Questionário
%s
%s
---

# Gere um Plano de Ensino Individualizado (PEI) completo com as 9 seções obrigatórias:
1. Identificação do aluno, com diagnóstico detalhado baseado no CID informado
2. Histórico e contexto educacional
3. Avaliação pedagógica funcional por área, com referência à BNCC quando aplicável
4. Metas e objetivos SMART para a vigência de 3 meses, com indicadores claros
5. Estratégias e adaptações pedagógicas com exemplos práticos e recursos de baixo custo
6. Monitoramento e revisão: instrumentos, frequência e responsáveis
7. Dicas neuroeducacionais para ambiente, ritmo e processamento sensorial
8. Orientações para a família e continuidade em casa
9. Roteiro de observações para os próximos 3 meses, com 5 a 8 aspectos específicos`,
		cfg.StartDate.Format(time.RFC3339),
		cfg.EndDate.Format(time.RFC3339),
		asJSON(cfg.Student),
		asJSON(cfg.Classroom),
		asJSON(cfg.School),
		asJSON(cfg.Teacher),
		string(cfg.FormQuestions),
		secondQuestionsSection(cfg.SecondFormQuestions),
	)

	return s.generate(ctx, model.AIRequestTypePEICreation, peiSystemPrompt, prompt, cfg.Teacher)
}

func (s *ContentService) RenewPEIContent(ctx context.Context, cfg PEIContext) (string, error) {
	prompt := fmt.Sprintf(`# Use os dados abaixo para renovar o PEI do aluno.

## Início do PEI
%s

## Fim do PEI
%s

## PEI anterior
%s

## Anotações dos 3 meses anteriores
%s

## Aluno
%s

## Turma do aluno
%s

## Escola do aluno
%s

## Professor responsável pelo PEI
%s

## Questionário
%s
%s`,
		cfg.StartDate.Format(time.RFC3339),
		cfg.EndDate.Format(time.RFC3339),
		asJSON(cfg.PreviousPEI),
		asJSON(cfg.LatestNotes),
		asJSON(cfg.Student),
		asJSON(cfg.Classroom),
		asJSON(cfg.School),
		asJSON(cfg.Teacher),
		string(cfg.FormQuestions),
		secondQuestionsSection(cfg.SecondFormQuestions),
	)

	return s.generate(ctx, model.AIRequestTypePEIRenewal, peiSystemPrompt, prompt, cfg.Teacher)
}

func (s *ContentService) CreateWeeklyPlanContent(ctx context.Context, cfg WeeklyPlanContext) (string, error) {
	prompt := fmt.Sprintf(`# Use os dados abaixo para criar o plano semanal do aluno.

## Semana
%s até %s

## PEI vigente
%s

## Aluno
%s

## Questionário
%s`,
		cfg.WeekStart.Format("2006-01-02"),
		cfg.WeekEnd.Format("2006-01-02"),
		asJSON(cfg.CurrentPEI),
		asJSON(cfg.Student),
		string(cfg.FormQuestions),
	)

	return s.generate(ctx, model.AIRequestTypeWeeklyPlanCreation, weeklyPlanSystemPrompt, prompt, cfg.Teacher)
}

// generate runs the generator and records the audit row. The row is written
// on the error path too, before the failure propagates.
func (s *ContentService) generate(ctx context.Context, requestType, systemPrompt, prompt string, teacher *model.Profile) (string, error) {
	result, err := s.generator.GenerateText(ctx, systemPrompt, prompt)
	if err != nil {
		audit := model.AIRequest{
			InputData:  prompt,
			OutputData: fmt.Sprintf("Erro ao gerar conteúdo: %v", err),
			Type:       requestType,
			Status:     model.AIRequestStatusError,
			AIModel:    s.model,
			UserID:     teacher.UserID,
			SchoolID:   teacher.SchoolID,
		}
		if dbErr := s.db.Create(&audit).Error; dbErr != nil {
			log.Printf("Could not record failed AI request: %v", dbErr)
		}
		return "", err
	}

	audit := model.AIRequest{
		InputData:    prompt,
		OutputData:   result.Text,
		Type:         requestType,
		Status:       model.AIRequestStatusCompleted,
		AIModel:      s.model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens,
		UserID:       teacher.UserID,
		SchoolID:     teacher.SchoolID,
	}
	if err := s.db.Create(&audit).Error; err != nil {
		return "", err
	}

	return result.Text, nil
}

func asJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func secondQuestionsSection(q datatypes.JSON) string {
	if len(q) == 0 {
		return ""
	}
	return fmt.Sprintf("\n## Questionário Quantitativo\n%s\n", string(q))
}
