package service_test

import (
	"testing"
	"time"

	"dealroom/internal/config"
	"dealroom/internal/handle"
	"dealroom/internal/repository"
	"dealroom/internal/service"
	"dealroom/internal/testutil"
)

// testEnv wires the full service stack against a containerized database
type testEnv struct {
	Containers *testutil.TestContainers
	Fixtures   *testutil.Fixtures

	UserRepo     *repository.UserRepository
	DealRepo     *repository.DealRepository
	DocumentRepo *repository.DocumentRepository
	NdaRepo      *repository.NdaRepository
	RequestRepo  *repository.AccessRequestRepository
	AuditRepo    *repository.AuditRepository

	AuditService   *service.AuditService
	NdaService     *service.NdaService
	Levels         *service.EffectiveLevelCalculator
	RequestService *service.AccessRequestService
	Disclosure     *service.DisclosureService
	Workflow       *service.DealWorkflowService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	containers := testutil.SetupTestContainers(t)
	t.Cleanup(func() { containers.Cleanup(t) })

	fixtures := testutil.SetupFixtures(t, containers.DB)

	env := &testEnv{
		Containers:   containers,
		Fixtures:     fixtures,
		UserRepo:     repository.NewUserRepository(containers.DB),
		DealRepo:     repository.NewDealRepository(containers.DB),
		DocumentRepo: repository.NewDocumentRepository(containers.DB),
		NdaRepo:      repository.NewNdaRepository(containers.DB),
		RequestRepo:  repository.NewAccessRequestRepository(containers.DB),
		AuditRepo:    repository.NewAuditRepository(containers.DB),
	}

	accessCfg := config.AccessConfig{
		RevokeResetsEscalations: true,
		ExtensionDays:           60,
		NdaValidityDays:         365,
	}

	env.AuditService = service.NewAuditService(env.AuditRepo)
	env.NdaService = service.NewNdaService(env.NdaRepo, env.RequestRepo, env.AuditRepo, accessCfg)
	env.Levels = service.NewEffectiveLevelCalculator(env.RequestRepo, env.NdaService)
	env.RequestService = service.NewAccessRequestService(env.RequestRepo, env.UserRepo, env.AuditRepo, env.Levels)

	authHelper := testutil.NewAuthHelper()
	privateKey, publicKey := authHelper.Service.SigningKey()
	issuer := handle.NewIssuer(privateKey, publicKey, 5*time.Minute)

	env.Disclosure = service.NewDisclosureService(env.DocumentRepo, env.DealRepo, env.Levels, env.NdaService, issuer, env.AuditService)
	env.Workflow = service.NewDealWorkflowService(env.DealRepo, env.DocumentRepo, env.AuditService)

	return env
}
