package sqlite

// CatalogSchema creates the merchant and offer tables. Merchant names carry a
// unique index; concurrent creates for the same name trip the constraint and
// callers re-query.
var CatalogSchema = `
	CREATE TABLE IF NOT EXISTS merchants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	address    TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
	);

	CREATE TABLE IF NOT EXISTS offers (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	image_url    TEXT NOT NULL DEFAULT '',
	discount     INTEGER NOT NULL DEFAULT 0,
	start_date   TIMESTAMP NOT NULL,
	end_date     TIMESTAMP NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	merchant_id  TEXT NOT NULL REFERENCES merchants(id),
	external_url TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
	);

	CREATE INDEX IF NOT EXISTS idx_offers_merchant_id ON offers(merchant_id);
`
