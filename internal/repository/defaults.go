package repository

import (
	"github.com/joseph-ayodele/pdf-splitter/constants"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

// DefaultProfiles are seeded into an empty or unreadable profile store.
func DefaultProfiles() []entity.IndexProfile {
	text := func(name, value, placeholder string, required bool) entity.IndexField {
		return entity.IndexField{
			Name:        name,
			Value:       value,
			Placeholder: placeholder,
			Required:    required,
			FieldType:   constants.FieldText,
			Options:     []string{},
		}
	}

	return []entity.IndexProfile{
		{
			Name:          "Basic Document",
			Description:   "Simple document indexing",
			OutputPattern: "{document_type}/{file_name}",
			Fields: []entity.IndexField{
				text("Document Type", "", "e.g., contracts, invoices", false),
				text("File Name", "", "Output filename", true),
			},
		},
		{
			Name:          "Invoice Processing",
			Description:   "For processing invoices",
			OutputPattern: "{vendor}/{year}/{month}/{invoice_number}",
			Fields: []entity.IndexField{
				text("Vendor", "", "Vendor name", true),
				text("Invoice Number", "", "Invoice #", true),
				text("Year", "", "2024", true),
				text("Month", "", "01-12", true),
			},
		},
		{
			Name:          "Contract Management",
			Description:   "For organizing contracts",
			OutputPattern: "{contract_type}/{client}/{file_name}",
			Fields: []entity.IndexField{
				text("Contract Type", "Service Agreement", "Contract type", false),
				text("Client", "", "Client name", true),
				text("File Name", "", "Contract filename", true),
			},
		},
	}
}
