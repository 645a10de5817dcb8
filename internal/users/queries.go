package users

const userColumns = `id, uuid, name, email, role, password_hash, is_active, is_deleted, deleted_at, created_at, updated_at, last_login_at`

const (
	qListUsers = `SELECT ` + userColumns + ` FROM users WHERE is_deleted = false ORDER BY id`

	qUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_deleted = false`

	qUserByUUID = `SELECT ` + userColumns + ` FROM users WHERE uuid = $1 AND is_active = true AND is_deleted = false`

	qUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true AND is_deleted = false`

	qInsertUser = `INSERT INTO users (uuid, name, email, role, password_hash, is_active, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, true, false, $6, $6)
RETURNING ` + userColumns

	// %s is one of the refWhere fragments.
	qUpdateUser = `UPDATE users SET name = COALESCE($2, name), email = COALESCE($3, email), updated_at = $4
WHERE %s RETURNING ` + userColumns

	qSoftDeleteUser = `UPDATE users SET is_active = false, is_deleted = true, deleted_at = $2, updated_at = $2
WHERE %s RETURNING ` + userColumns

	// Right-hand sides see the old row, so NOT is_active is the new state.
	qToggleUser = `UPDATE users SET
    is_active = NOT is_active,
    is_deleted = CASE WHEN NOT is_active THEN false ELSE is_deleted END,
    deleted_at = CASE WHEN NOT is_active THEN NULL ELSE deleted_at END,
    updated_at = $2
WHERE %s RETURNING ` + userColumns

	qTouchLastLogin = `UPDATE users SET last_login_at = $2 WHERE id = $1`

	qPurgeDeleted = `DELETE FROM users WHERE is_deleted = true AND deleted_at < $1`
)

const (
	whereID   = `id = $1`
	whereUUID = `uuid = $1`
)
