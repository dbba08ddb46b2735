package shared

// MetricsWarmupLockKey guards the scheduled dashboard warmup so only one worker runs it.
const MetricsWarmupLockKey = "bizbilling:metrics:warmup:lock"
