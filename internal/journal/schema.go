package journal

// Schema DDL. The database is rebuilt from outcomes.jsonl on every Attach,
// so there are no migrations.
const (
	createOutcomes = `CREATE TABLE outcomes (
    outcome_id TEXT PRIMARY KEY,
    proposal TEXT NOT NULL,
    target TEXT NOT NULL DEFAULT '',
    project_root TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL,
    fault TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT '',
    quarantine_path TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);`

	createTargetIndex   = `CREATE INDEX idx_outcomes_target ON outcomes(target);`
	createFinishedIndex = `CREATE INDEX idx_outcomes_finished ON outcomes(finished_at);`
)

var schemaStatements = []string{
	createOutcomes,
	createTargetIndex,
	createFinishedIndex,
}

const insertOutcome = `INSERT OR REPLACE INTO outcomes
    (outcome_id, proposal, target, project_root, state, fault, reason, quarantine_path, started_at, finished_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectColumns = `SELECT outcome_id, proposal, target, project_root, state, fault, reason, quarantine_path, started_at, finished_at FROM outcomes`

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"
