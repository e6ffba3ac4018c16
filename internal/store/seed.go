// File path: internal/store/seed.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azure-Samples/infra-support-copilot/internal/common"
)

// VirtualMachine mirrors one row of the virtual_machines inventory table.
type VirtualMachine struct {
	ResourceID        string `db:"resource_id" json:"resource_id"`
	Name              string `db:"name" json:"name"`
	SubscriptionID    string `db:"subscription_id" json:"subscription_id"`
	ResourceGroup     string `db:"resource_group" json:"resource_group"`
	Location          string `db:"location" json:"location"`
	VMSize            string `db:"vm_size" json:"vm_size"`
	OSType            string `db:"os_type" json:"os_type"`
	OSName            string `db:"os_name" json:"os_name"`
	OSVersion         string `db:"os_version" json:"os_version"`
	ProvisioningState string `db:"provisioning_state" json:"provisioning_state"`
	Priority          string `db:"priority" json:"priority"`
	TimeCreated       string `db:"time_created" json:"time_created"`
	PowerState        string `db:"power_state" json:"power_state"`
	AdminUsername     string `db:"admin_username" json:"admin_username"`
	ServerTypeTag     string `db:"server_type_tag" json:"server_type_tag"`
	TagsJSON          string `db:"tags_json" json:"tags_json"`
	IdentityPrincipal string `db:"identity_principal_id" json:"identity_principal_id"`
}

// NetworkInterface mirrors one row of the network_interfaces table.
type NetworkInterface struct {
	ResourceID       string `db:"resource_id" json:"resource_id"`
	Name             string `db:"name" json:"name"`
	SubscriptionID   string `db:"subscription_id" json:"subscription_id"`
	ResourceGroup    string `db:"resource_group" json:"resource_group"`
	Location         string `db:"location" json:"location"`
	MACAddress       string `db:"mac_address" json:"mac_address"`
	PrivateIP        string `db:"private_ip" json:"private_ip"`
	AllocationMethod string `db:"allocation_method" json:"allocation_method"`
	Accelerated      bool   `db:"accelerated" json:"accelerated"`
	PrimaryFlag      bool   `db:"primary_flag" json:"primary_flag"`
	VMResourceID     string `db:"vm_resource_id" json:"vm_resource_id"`
}

// InstalledSoftware mirrors one row of the installed_software table.
type InstalledSoftware struct {
	ComputerName   string `db:"computer_name" json:"computer_name"`
	SoftwareName   string `db:"software_name" json:"software_name"`
	CurrentVersion string `db:"current_version" json:"current_version"`
	Publisher      string `db:"publisher" json:"publisher"`
}

type seedFile struct {
	VirtualMachines   []VirtualMachine    `json:"virtual_machines"`
	NetworkInterfaces []NetworkInterface  `json:"network_interfaces"`
	InstalledSoftware []InstalledSoftware `json:"installed_software"`
	Documents         []Document          `json:"documents"`
}

// Seed loads inventory rows and documents from a JSON file. Existing rows
// with the same primary key are replaced, so reseeding is idempotent.
func (s *Store) Seed(ctx context.Context, path string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialised")
	}
	logger := common.Logger()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()
	if len(seed.InstalledSoftware) > 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM installed_software"); err != nil {
			return fmt.Errorf("reset installed_software: %w", err)
		}
	}
	if len(seed.Documents) > 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
			return fmt.Errorf("reset documents: %w", err)
		}
	}
	for _, vm := range seed.VirtualMachines {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT OR REPLACE INTO virtual_machines (
				resource_id, name, subscription_id, resource_group, location,
				vm_size, os_type, os_name, os_version, provisioning_state,
				priority, time_created, power_state, admin_username,
				server_type_tag, tags_json, identity_principal_id
			) VALUES (
				:resource_id, :name, :subscription_id, :resource_group, :location,
				:vm_size, :os_type, :os_name, :os_version, :provisioning_state,
				:priority, :time_created, :power_state, :admin_username,
				:server_type_tag, :tags_json, :identity_principal_id
			)`, vm); err != nil {
			return fmt.Errorf("seed virtual_machines: %w", err)
		}
	}
	for _, ni := range seed.NetworkInterfaces {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT OR REPLACE INTO network_interfaces (
				resource_id, name, subscription_id, resource_group, location,
				mac_address, private_ip, allocation_method, accelerated,
				primary_flag, vm_resource_id
			) VALUES (
				:resource_id, :name, :subscription_id, :resource_group, :location,
				:mac_address, :private_ip, :allocation_method, :accelerated,
				:primary_flag, :vm_resource_id
			)`, ni); err != nil {
			return fmt.Errorf("seed network_interfaces: %w", err)
		}
	}
	for _, sw := range seed.InstalledSoftware {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO installed_software (computer_name, software_name, current_version, publisher)
			 VALUES (:computer_name, :software_name, :current_version, :publisher)`, sw); err != nil {
			return fmt.Errorf("seed installed_software: %w", err)
		}
	}
	for _, doc := range seed.Documents {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO documents (title, kind, content) VALUES (:title, :kind, :content)`, doc); err != nil {
			return fmt.Errorf("seed documents: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	logger.Info("store: seed applied",
		"virtual_machines", len(seed.VirtualMachines),
		"network_interfaces", len(seed.NetworkInterfaces),
		"installed_software", len(seed.InstalledSoftware),
		"documents", len(seed.Documents))
	return nil
}
