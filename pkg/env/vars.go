package env

import "time"

// Memory Engine tuning (§4.1, §9 Open Questions).
var (
	EmbeddingDimension = RegisterIntVar(
		"AETERNA_EMBEDDING_DIMENSION",
		1536,
		"Fixed dimensionality every embedding vector in this deployment must match.",
		ComponentMemory,
	)

	SearchSimilarityThreshold = RegisterFloatVar(
		"AETERNA_SEARCH_SIMILARITY_THRESHOLD",
		0.7,
		"Minimum cosine similarity a search result must clear to be returned.",
		ComponentMemory,
	)

	SearchComplexityThreshold = RegisterFloatVar(
		"AETERNA_SEARCH_COMPLEXITY_THRESHOLD",
		0.3,
		"Query complexity score above which search is rewritten as a decomposition plan.",
		ComponentMemory,
	)

	RewardDecayHalfLife = RegisterDurationVar(
		"AETERNA_REWARD_DECAY_HALF_LIFE",
		72*time.Hour,
		"Half-life used to decay a memory's reward_score between accesses.",
		ComponentMemory,
	)

	AccessBoostAlpha = RegisterFloatVar(
		"AETERNA_ACCESS_BOOST_ALPHA",
		0.05,
		"Amount added to the decayed reward_score on every access event.",
		ComponentMemory,
	)

	PromotionThreshold = RegisterFloatVar(
		"AETERNA_PROMOTION_THRESHOLD",
		0.75,
		"Default reward_score threshold for the PromotionEngine to propose promotion.",
		ComponentMemory,
	)

	PromotionScanInterval = RegisterDurationVar(
		"AETERNA_PROMOTION_SCAN_INTERVAL",
		5*time.Minute,
		"How often the PromotionEngine daemon scans agent/user/session layers.",
		ComponentMemory,
	)

	HindsightPromoteAfter = RegisterIntVar(
		"AETERNA_HINDSIGHT_PROMOTE_AFTER",
		3,
		"Number of successful applications of a hindsight note before it is proposed for promotion.",
		ComponentMemory,
	)
)

// Governance Engine tuning (§4.3).
var (
	DriftConfidenceManualReviewThreshold = RegisterFloatVar(
		"AETERNA_DRIFT_CONFIDENCE_THRESHOLD",
		0.7,
		"Drift confidence below which requires_manual_review is set.",
		ComponentGovernance,
	)

	AuthzProvider = RegisterStringVar(
		"AETERNA_AUTHZ_PROVIDER",
		"opa",
		"Wire-format provider used to talk to the external authorization decision engine.",
		ComponentGovernance,
	)

	ExternalAuthzEndpoint = RegisterStringVar(
		"AETERNA_EXTERNAL_AUTHZ_ENDPOINT",
		"",
		"URL of the external authorization decision endpoint (e.g. OPA). Empty disables external authorization.",
		ComponentGovernance,
	)
)

// Sync Bridge tuning (§4.4).
var (
	SyncInterval = RegisterDurationVar(
		"AETERNA_SYNC_INTERVAL",
		60*time.Second,
		"Interval between Memory<->Knowledge reconciliation cycles.",
		ComponentSync,
	)

	SyncBackoffBase = RegisterDurationVar(
		"AETERNA_SYNC_BACKOFF_BASE",
		1*time.Second,
		"Base delay for exponential backoff on transient sync storage errors.",
		ComponentSync,
	)

	SyncBackoffCap = RegisterDurationVar(
		"AETERNA_SYNC_BACKOFF_CAP",
		30*time.Second,
		"Maximum backoff delay for sync retries.",
		ComponentSync,
	)

	SyncMaxAttempts = RegisterIntVar(
		"AETERNA_SYNC_MAX_ATTEMPTS",
		3,
		"Maximum retry attempts for a sync cycle before the bridge pauses with SyncHealth=Degraded.",
		ComponentSync,
	)
)

// Context Architect tuning (§4.5).
var (
	AssemblyTokenBudgetDefault = RegisterIntVar(
		"AETERNA_ASSEMBLY_TOKEN_BUDGET",
		8000,
		"Default token budget for Context Architect assembly when the caller does not specify one.",
		ComponentContext,
	)

	AssemblySLOTargetMillis = RegisterIntVar(
		"AETERNA_ASSEMBLY_SLO_MILLIS",
		100,
		"p99 assembly latency target in milliseconds; exceeding it returns a truncated partial context.",
		ComponentContext,
	)

	SummarizerCircuitBreakerFailures = RegisterIntVar(
		"AETERNA_SUMMARIZER_CIRCUIT_BREAKER_FAILURES",
		5,
		"Consecutive summarizer failures within the breaker window before tripping CircuitOpen.",
		ComponentContext,
	)

	SummarizerCircuitBreakerWindow = RegisterDurationVar(
		"AETERNA_SUMMARIZER_CIRCUIT_BREAKER_WINDOW",
		60*time.Second,
		"Rolling window over which summarizer failures are counted for the circuit breaker.",
		ComponentContext,
	)

	DailyTokenBudget = RegisterIntVar(
		"AETERNA_DAILY_SUMMARIZATION_TOKEN_BUDGET",
		200000,
		"Tenant-wide daily token cap the BudgetTracker enforces for summary generation.",
		ComponentContext,
	)

	HourlyTokenBudget = RegisterIntVar(
		"AETERNA_HOURLY_SUMMARIZATION_TOKEN_BUDGET",
		20000,
		"Tenant-wide hourly token cap the BudgetTracker enforces for summary generation.",
		ComponentContext,
	)
)

// Storage tuning (§4.6, §6.2).
var (
	DatabaseDSN = RegisterStringVar(
		"AETERNA_DATABASE_DSN",
		"",
		"Connection string for the RelationalStore (Postgres DSN, or a sqlite file path).",
		ComponentStorage,
	)

	DatabaseDriver = RegisterStringVar(
		"AETERNA_DATABASE_DRIVER",
		"sqlite",
		"RelationalStore backend: \"postgres\" or \"sqlite\".",
		ComponentStorage,
	)

	VectorStoreEnabled = RegisterBoolVar(
		"AETERNA_VECTOR_STORE_ENABLED",
		true,
		"When true, embeddings are persisted through the pgvector-backed VectorStore.",
		ComponentStorage,
	)

	GormLogLevel = RegisterStringVar(
		"AETERNA_GORM_LOG_LEVEL",
		"silent",
		"GORM logger verbosity: silent, error, warn, info.",
		ComponentStorage,
	)

	KnowledgeMirrorRoot = RegisterStringVar(
		"AETERNA_KNOWLEDGE_MIRROR_ROOT",
		"",
		"Filesystem root for the {layer}/{tenant}/{type}/{id}.md + manifest.json knowledge mirror (§6.2). Empty disables the mirror; the relational store remains authoritative either way.",
		ComponentStorage,
	)
)

// Server tuning.
var (
	ServerAddr = RegisterStringVar(
		"AETERNA_SERVER_ADDR",
		":8090",
		"Listen address for the HTTP operation surface.",
		ComponentServer,
	)

	AuditLogEnabled = RegisterBoolVar(
		"AETERNA_AUDIT_LOG_ENABLED",
		true,
		"Enables structured audit logging middleware on every request.",
		ComponentServer,
	)

	DefaultTenantID = RegisterStringVar(
		"AETERNA_DEFAULT_TENANT_ID",
		"default",
		"Tenant the commit log is scoped to; a single aeterna process serves one tenant's commit history.",
		ComponentServer,
	)
)
