package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"peiplan_backend/internal/controller"
	"peiplan_backend/internal/middleware"
	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/ai"
	"peiplan_backend/pkg/config"
	"peiplan_backend/pkg/cron"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/email"
	"peiplan_backend/pkg/payment"
	"peiplan_backend/pkg/pei"
	"peiplan_backend/pkg/seed"
	"peiplan_backend/pkg/subscription"
	"peiplan_backend/pkg/utils/storage"
)

func setupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/forgot-password", controller.ForgotPassword)
	auth.Post("/reset-password", controller.ResetPassword)

	// Protected Routes
	protected := api.Group("/", middleware.AuthMiddleware())
	protected.Get("/me", controller.GetMe)

	// Profile routes
	profile := protected.Group("/profile")
	profile.Get("/", controller.GetProfile)
	profile.Put("/", controller.UpdateProfile)
	profile.Post("/avatar", controller.UploadAvatar)

	// School routes (director only)
	schools := protected.Group("/schools")
	schools.Get("/", controller.ListSchools)
	schools.Get("/:id", controller.GetSchool)
	schools.Post("/", middleware.RequireRole(model.RoleDirector), controller.CreateSchool)
	schools.Put("/:id", middleware.RequireRole(model.RoleDirector), controller.UpdateSchool)
	schools.Delete("/:id", middleware.RequireRole(model.RoleDirector), controller.DeleteSchool)

	// Classroom routes (director only for writes)
	classrooms := protected.Group("/classrooms")
	classrooms.Get("/", controller.ListClassrooms)
	classrooms.Get("/:id", controller.GetClassroom)
	classrooms.Post("/", middleware.RequireRole(model.RoleDirector), controller.CreateClassroom)
	classrooms.Put("/:id", middleware.RequireRole(model.RoleDirector), controller.UpdateClassroom)
	classrooms.Delete("/:id", middleware.RequireRole(model.RoleDirector), controller.DeleteClassroom)

	// Teacher management (director only)
	teachers := protected.Group("/teachers", middleware.RequireRole(model.RoleDirector))
	teachers.Get("/", controller.ListTeachers)
	teachers.Get("/:id", controller.GetTeacher)
	teachers.Post("/", controller.CreateTeacher)
	teachers.Put("/:id", controller.UpdateTeacher)
	teachers.Delete("/:id", controller.DeleteTeacher)

	// Student routes with subscription limit on creation
	students := protected.Group("/students")
	students.Get("/", controller.ListStudents)
	students.Get("/:id", controller.GetStudent)
	students.Post("/", middleware.CheckStudentLimit(), controller.CreateStudent)
	students.Put("/:id", controller.UpdateStudent)
	students.Delete("/:id", controller.DeleteStudent)
	students.Post("/:id/photo", controller.UploadStudentPhoto)

	// Note routes (teachers)
	notes := protected.Group("/notes", middleware.RequireRole(model.RoleTeacher))
	notes.Get("/", controller.ListNotes)
	notes.Post("/", controller.CreateNote)
	notes.Put("/:id", controller.UpdateNote)
	notes.Delete("/:id", controller.DeleteNote)

	// PEI routes (teachers, gated by the trimester limit)
	peis := protected.Group("/peis", middleware.RequireRole(model.RoleTeacher))
	peis.Get("/", controller.ListPEIs)
	peis.Get("/latest", controller.GetStudentPEI)
	peis.Post("/", middleware.CheckPeiLimit(), controller.CreatePEI)
	peis.Post("/renew", middleware.CheckPeiLimit(), controller.RenewPEI)

	// Weekly plan routes (teachers, gated by the plan limit)
	weeklyPlans := protected.Group("/weekly-plans", middleware.RequireRole(model.RoleTeacher))
	weeklyPlans.Get("/", controller.ListWeeklyPlans)
	weeklyPlans.Get("/:id", controller.GetWeeklyPlan)
	weeklyPlans.Post("/", middleware.CheckWeeklyPlanLimit(), controller.CreateWeeklyPlan)
	weeklyPlans.Delete("/:id", controller.DeleteWeeklyPlan)

	// Subscription routes
	subscriptions := api.Group("/subscriptions")
	subscriptions.Get("/plans", controller.ListPlans)

	subProtected := subscriptions.Use(middleware.AuthMiddleware())
	subProtected.Post("/subscribe", middleware.RequireRole(model.RoleDirector), controller.Subscribe)
	subProtected.Post("/cancel", middleware.RequireRole(model.RoleDirector), controller.CancelSubscription)
	subProtected.Get("/my", controller.GetMySubscription)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthMiddleware(), middleware.RequireAdmin())
	admin.Get("/users", controller.ListUsers)
	admin.Put("/users/:id/admin", controller.SetAdmin)
	admin.Get("/subscriptions", controller.ListSubscriptions)
	admin.Post("/subscriptions/custom", controller.CreateCustomSubscription)
	admin.Put("/subscriptions/:id", controller.UpdateSubscriptionAdmin)
	admin.Delete("/subscriptions/:id", controller.DeleteSubscription)
	admin.Get("/ai-requests", controller.ListAIRequests)
	admin.Get("/metrics", controller.GetMetrics)

	// Stripe webhook
	api.Post("/webhook", controller.HandleStripeWebhook)
}

func main() {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(
		&model.User{},
		&model.Profile{},
		&model.School{},
		&model.Classroom{},
		&model.ClassroomAssignment{},
		&model.Student{},
		&model.MedicalCondition{},
		&model.Note{},
		&model.WeeklyPlan{},
		&model.PEI{},
		&model.AIRequest{},
		&model.Subscription{},
		&model.SubscriptionLimit{},
		&model.SubscriptionFeature{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	if err := email.InitEmailService(cfg.Email.ResendAPIKey, cfg.Email.From); err != nil {
		log.Fatal("Could not initialize email service:", err)
	}

	if err := storage.InitStorage(); err != nil {
		log.Printf("Storage initialization warning: %v", err)
	}

	seed.SeedDemoData(database.DB)

	gateway := payment.NewStripeGateway(
		cfg.Stripe.SecretKey,
		cfg.Stripe.WebhookSecret,
		cfg.Stripe.SuccessURL,
		cfg.Stripe.CancelURL,
	)

	generator := ai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
	contentService := ai.NewContentService(database.DB, generator, cfg.AI.Model)
	peiService := pei.NewService(database.DB, contentService)
	subscriptionService := subscription.NewService(database.DB, gateway)
	reconciler := subscription.NewReconciler(database.DB, gateway)

	controller.InitSubscriptionController(subscriptionService, reconciler, gateway)
	controller.InitPEIController(peiService)
	controller.InitWeeklyPlanController(contentService)

	cron.InitSubscriptionExpiryCron(reconciler)
	cron.InitSubscriptionCleanupCron(reconciler)
	cron.InitSubscriptionWarningCron()
	cron.InitPEIExpiryCron(peiService)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
