package store

// schemaSQL creates the three tables this package maps its operations onto.
// It matches the original C++ program's DDL column-for-column, only
// translating INTEGER -> SERIAL/INT as pgx expects.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id SERIAL PRIMARY KEY,
	url TEXT UNIQUE NOT NULL,
	title TEXT,
	content TEXT,
	created_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS words (
	id SERIAL PRIMARY KEY,
	word VARCHAR(32) UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS document_words (
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	word_id     INTEGER NOT NULL REFERENCES words(id) ON DELETE CASCADE,
	frequency   INTEGER NOT NULL CHECK (frequency > 0),
	PRIMARY KEY (document_id, word_id)
);
`
