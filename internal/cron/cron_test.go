package cron

import (
	"os"
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"k8s.io/client-go/kubernetes"

	"github.com/mailgram/mailgram/config"
	"github.com/mailgram/mailgram/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestNewCronManager(t *testing.T) {
	cfg := &config.Config{
		AppConfig: &config.AppConfig{},
		Logger: &logger.Config{
			LogLevel: "info",
		},
	}
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, log, k8s, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	os.Setenv("CRON_SCHEDULE_RETRY_FAILED_EMAILS", "0 * * * * *")
	os.Setenv("CRON_SCHEDULE_RETRY_FAILED_PHOTOS", "30 * * * * *")
	defer os.Unsetenv("CRON_SCHEDULE_RETRY_FAILED_EMAILS")
	defer os.Unsetenv("CRON_SCHEDULE_RETRY_FAILED_PHOTOS")

	cfg := &config.Config{
		AppConfig: &config.AppConfig{},
		Logger: &logger.Config{
			LogLevel: "info",
		},
	}
	cm := NewCronManager(cfg, getLogger(), &mockKubernetesInterface{}, nil)

	c := cronv3.New(cronv3.WithSeconds())
	cm.registerJobs(c)

	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "retry_failed_emails")
	assert.Contains(t, cm.jobIDs, "retry_failed_photos")
}

func TestCronManager_Stop(t *testing.T) {
	cfg := &config.Config{
		AppConfig: &config.AppConfig{},
		Logger: &logger.Config{
			LogLevel: "info",
		},
	}
	cm := NewCronManager(cfg, getLogger(), &mockKubernetesInterface{}, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()

	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}
