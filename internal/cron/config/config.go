package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Failed email redelivery, every minute
	CronScheduleRetryFailedEmails string `env:"CRON_SCHEDULE_RETRY_FAILED_EMAILS" envDefault:"0 * * * * *"`
	// Failed photo redelivery, every minute
	CronScheduleRetryFailedPhotos string `env:"CRON_SCHEDULE_RETRY_FAILED_PHOTOS" envDefault:"0 * * * * *"`
}
