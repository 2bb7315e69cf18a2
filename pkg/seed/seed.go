package seed

import (
	"log"
	"time"

	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/plan"
)

// SeedDemoData populates an empty database with a director, three teachers,
// two schools with classrooms, and a handful of students with assignments.
// Every record goes through FirstOrCreate so re-running is safe.
func SeedDemoData(db *gorm.DB) {
	var count int64
	db.Model(&model.User{}).Count(&count)
	if count > 0 {
		log.Println("Database already seeded, skipping...")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("11111111"), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing seed password: %v", err)
		return
	}
	password := string(hashed)

	director := seedUser(db, "João Silva", "joao.silva@escola.com", password, model.RoleDirector, nil)
	if director == nil {
		return
	}

	schools := []model.School{
		{Name: "Escola Municipal São José", Address: "Rua das Flores, 123 - Centro", CreatedByID: director.ID},
		{Name: "Escola Estadual Dom Pedro II", Address: "Av. Principal, 456 - Bairro Novo", CreatedByID: director.ID},
	}
	for i := range schools {
		schools[i].Slug = slug.Make(schools[i].Name)
		if err := db.FirstOrCreate(&schools[i], model.School{Slug: schools[i].Slug}).Error; err != nil {
			log.Printf("Error creating school %s: %v", schools[i].Name, err)
			return
		}
	}

	teachers := []*model.Profile{
		seedUser(db, "Maria Santos", "maria.santos@escola.com", password, model.RoleTeacher, &director.ID),
		seedUser(db, "Pedro Oliveira", "pedro.oliveira@escola.com", password, model.RoleTeacher, &director.ID),
		seedUser(db, "Ana Costa", "ana.costa@escola.com", password, model.RoleTeacher, &director.ID),
	}
	schoolByTeacher := []uint{schools[0].ID, schools[0].ID, schools[1].ID}
	for i, teacher := range teachers {
		if teacher == nil {
			return
		}
		db.Model(teacher).Update("school_id", schoolByTeacher[i])
	}

	classrooms := []model.Classroom{
		{Name: "1º Ano A", Period: "MORNING", SchoolID: schools[0].ID, CreatedByID: director.ID},
		{Name: "2º Ano A", Period: "MORNING", SchoolID: schools[0].ID, CreatedByID: director.ID},
		{Name: "3º Ano A", Period: "AFTERNOON", SchoolID: schools[0].ID, CreatedByID: director.ID},
		{Name: "1º Ano B", Period: "MORNING", SchoolID: schools[1].ID, CreatedByID: director.ID},
		{Name: "2º Ano B", Period: "AFTERNOON", SchoolID: schools[1].ID, CreatedByID: director.ID},
	}
	for i := range classrooms {
		cond := model.Classroom{Name: classrooms[i].Name, SchoolID: classrooms[i].SchoolID}
		if err := db.FirstOrCreate(&classrooms[i], cond).Error; err != nil {
			log.Printf("Error creating classroom %s: %v", classrooms[i].Name, err)
			return
		}
	}

	students := []struct {
		student   model.Student
		teacher   *model.Profile
		classroom *model.Classroom
	}{
		{
			model.Student{
				FullName:       "Lucas Mendes",
				DateOfBirth:    time.Date(2017, 3, 15, 0, 0, 0, 0, time.UTC),
				Gender:         "MALE",
				CID:            "CID-001",
				SpecialNeeds:   "Dificuldades de aprendizagem em matemática",
				ParentGuardian: "Maria Mendes",
				HasCamping:     true,
				SchoolID:       schools[0].ID,
			},
			teachers[0], &classrooms[0],
		},
		{
			model.Student{
				FullName:       "Sofia Rodrigues",
				DateOfBirth:    time.Date(2016, 8, 22, 0, 0, 0, 0, time.UTC),
				Gender:         "FEMALE",
				CID:            "CID-002",
				SpecialNeeds:   "Transtorno do espectro autista",
				ParentGuardian: "Carlos Rodrigues",
				SchoolID:       schools[0].ID,
			},
			teachers[0], &classrooms[0],
		},
		{
			model.Student{
				FullName:       "Gabriel Almeida",
				DateOfBirth:    time.Date(2017, 11, 10, 0, 0, 0, 0, time.UTC),
				Gender:         "MALE",
				CID:            "CID-003",
				SpecialNeeds:   "Déficit de atenção",
				ParentGuardian: "Fernanda Almeida",
				HasCamping:     true,
				SchoolID:       schools[0].ID,
			},
			teachers[1], &classrooms[1],
		},
		{
			model.Student{
				FullName:       "Isabella Ferreira",
				DateOfBirth:    time.Date(2016, 5, 18, 0, 0, 0, 0, time.UTC),
				Gender:         "FEMALE",
				CID:            "CID-004",
				SpecialNeeds:   "Dificuldades motoras finas",
				ParentGuardian: "Roberto Ferreira",
				SchoolID:       schools[1].ID,
			},
			teachers[2], &classrooms[3],
		},
		{
			model.Student{
				FullName:       "Matheus Lima",
				DateOfBirth:    time.Date(2017, 1, 30, 0, 0, 0, 0, time.UTC),
				Gender:         "MALE",
				CID:            "CID-005",
				SpecialNeeds:   "Dificuldades de leitura e escrita",
				ParentGuardian: "Patrícia Lima",
				HasCamping:     true,
				SchoolID:       schools[1].ID,
			},
			teachers[2], &classrooms[4],
		},
	}

	for i := range students {
		entry := &students[i]
		entry.student.CreatedByID = entry.teacher.ID
		cond := model.Student{FullName: entry.student.FullName, SchoolID: entry.student.SchoolID}
		if err := db.FirstOrCreate(&entry.student, cond).Error; err != nil {
			log.Printf("Error creating student %s: %v", entry.student.FullName, err)
			continue
		}

		assignment := model.ClassroomAssignment{
			StudentID:   entry.student.ID,
			TeacherID:   entry.teacher.ID,
			ClassroomID: entry.classroom.ID,
		}
		if err := db.FirstOrCreate(&assignment, model.ClassroomAssignment{StudentID: entry.student.ID}).Error; err != nil {
			log.Printf("Error assigning student %s: %v", entry.student.FullName, err)
		}
	}

	seedSubscription(db, director, teachers)

	log.Println("Demo data seeded successfully!")
}

func seedUser(db *gorm.DB, fullName, email, password, role string, createdByID *uint) *model.Profile {
	user := model.User{
		FullName: fullName,
		Email:    email,
		Password: password,
	}
	if err := db.FirstOrCreate(&user, model.User{Email: email}).Error; err != nil {
		log.Printf("Error creating user %s: %v", email, err)
		return nil
	}

	profile := model.Profile{
		UserID:      user.ID,
		Role:        role,
		CreatedByID: createdByID,
	}
	if err := db.FirstOrCreate(&profile, model.Profile{UserID: user.ID}).Error; err != nil {
		log.Printf("Error creating profile for %s: %v", email, err)
		return nil
	}
	return &profile
}

func seedSubscription(db *gorm.DB, director *model.Profile, teachers []*model.Profile) {
	cfg, _ := plan.Get(plan.Basic)
	endDate := time.Now().AddDate(0, 1, 0)

	sub := model.Subscription{
		PlanType:  string(plan.Basic),
		Status:    model.SubscriptionStatusActive,
		Price:     cfg.Price,
		StartDate: time.Now(),
		EndDate:   &endDate,
		Limit: &model.SubscriptionLimit{
			MaxStudents:        cfg.Limits.MaxStudents,
			MaxPeiPerTrimester: cfg.Limits.MaxPeiPerTrimester,
			MaxWeeklyPlans:     cfg.Limits.MaxWeeklyPlans,
		},
		Feature: &model.SubscriptionFeature{
			PremiumSupport: cfg.Features.PremiumSupport,
		},
	}
	if err := db.Create(&sub).Error; err != nil {
		log.Printf("Error creating seed subscription: %v", err)
		return
	}

	db.Model(director).Update("subscription_id", sub.ID)
	for _, teacher := range teachers {
		if teacher != nil {
			db.Model(teacher).Update("subscription_id", sub.ID)
		}
	}
}
