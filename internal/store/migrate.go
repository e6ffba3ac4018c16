// File path: internal/store/migrate.go
package store

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS virtual_machines (
		resource_id           TEXT PRIMARY KEY,
		name                  TEXT,
		subscription_id       TEXT,
		resource_group        TEXT,
		location              TEXT,
		vm_size               TEXT,
		os_type               TEXT,
		os_name               TEXT,
		os_version            TEXT,
		provisioning_state    TEXT,
		priority              TEXT,
		time_created          TEXT,
		power_state           TEXT,
		admin_username        TEXT,
		server_type_tag       TEXT,
		tags_json             TEXT,
		identity_principal_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS network_interfaces (
		resource_id       TEXT PRIMARY KEY,
		name              TEXT,
		subscription_id   TEXT,
		resource_group    TEXT,
		location          TEXT,
		mac_address       TEXT,
		private_ip        TEXT,
		allocation_method TEXT,
		accelerated       INTEGER,
		primary_flag      INTEGER,
		vm_resource_id    TEXT REFERENCES virtual_machines(resource_id)
	)`,
	`CREATE TABLE IF NOT EXISTS installed_software (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		computer_name   TEXT NOT NULL,
		software_name   TEXT NOT NULL,
		current_version TEXT,
		publisher       TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		title   TEXT NOT NULL,
		kind    TEXT NOT NULL DEFAULT 'inventory',
		content TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_network_interfaces_vm ON network_interfaces(vm_resource_id)`,
	`CREATE INDEX IF NOT EXISTS idx_installed_software_computer ON installed_software(computer_name)`,
}
