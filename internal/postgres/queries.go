package postgres

const (
	qInsertMessage = `
		INSERT INTO messages (id, sender_id, receiver_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, sender_id, receiver_id, text, read, created_at, updated_at`

	qConversation = `
		SELECT id, sender_id, receiver_id, text, read, created_at, updated_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC`

	qMarkRead = `
		UPDATE messages SET read = TRUE, updated_at = now()
		WHERE receiver_id = $1 AND NOT read`

	qUnreadCounts = `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND NOT read
		GROUP BY sender_id`

	qUserByID = `SELECT id, name, avatar_url FROM users WHERE id = $1`

	qUsersExcept = `
		SELECT id, name, avatar_url
		FROM users
		WHERE id <> $1
		ORDER BY name, id`

	qUpsertUser = `
		INSERT INTO users (id, name, avatar_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url`

	qFollowingIDs = `
		SELECT following_id FROM user_follows
		WHERE follower_id = $1
		ORDER BY following_id`

	qFollow = `
		INSERT INTO user_follows (follower_id, following_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
)
