package metadata

// Draft status values. The engine only ever writes StatusInProgress.
const (
	StatusProspectiveDraft = "prospective_draft"
	StatusInProgress       = "in_progress"
	StatusSubmitted        = "submitted"
	StatusApproved         = "approved"
	StatusRejected         = "rejected"
)

// EmployeeOwnerColumn is the foreign key every dependent row carries.
const EmployeeOwnerColumn = "employee_id"

var usStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "DC", "FL", "GA", "HI", "ID", "IL", "IN",
	"IA", "KS", "KY", "LA", "ME", "MD", "MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH",
	"NJ", "NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT",
	"VT", "VA", "WA", "WV", "WI", "WY", "PR", "GU", "VI",
}

const (
	emailRule = `value matches "^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$"`
	npiRule   = `value matches "^[0-9]{10}$"`
	zipRule   = `value matches "^[0-9]{5}(-[0-9]{4})?$"`
	yearRule  = `value >= 1900 && value <= 2100`
)

// Employee is the primary draft record, one per owner key.
var Employee = &Entity{
	Name:        "employee",
	Table:       "employees",
	Label:       "Employee",
	Primary:     true,
	OwnerColumn: "owner_key",
	ServerOwned: []string{"id", "ownerKey", "status", "employeeId", "createdAt", "updatedAt"},
	Fields: []Field{
		{Name: "firstName", Type: "string", MaxLength: 100},
		{Name: "middleName", Type: "string", MaxLength: 100},
		{Name: "lastName", Type: "string", MaxLength: 100},
		{Name: "preferredName", Type: "string", MaxLength: 100},
		{Name: "suffix", Type: "string", MaxLength: 20},
		{Name: "dateOfBirth", Type: "date", Aliases: []string{"dob", "birthDate"}},
		{Name: "gender", Type: "string", MaxLength: 40},
		{Name: "ssnLast4", Type: "string", Rule: `value matches "^[0-9]{4}$"`, Message: "must be 4 digits"},
		{Name: "email", Type: "string", MaxLength: 254, Rule: emailRule, Message: "must be a valid email address"},
		{Name: "phoneNumber", Type: "string", Aliases: []string{"phone"}, MaxLength: 40},
		{Name: "alternatePhone", Type: "string", Aliases: []string{"altPhone"}, MaxLength: 40},
		{Name: "addressLine1", Type: "string", Aliases: []string{"address", "street"}, MaxLength: 200},
		{Name: "addressLine2", Type: "string", MaxLength: 200},
		{Name: "city", Type: "string", MaxLength: 100},
		{Name: "state", Type: "string", Enum: usStates},
		{Name: "zipCode", Type: "string", Aliases: []string{"zip", "postalCode"}, Rule: zipRule, Message: "must be a 5 or 9 digit ZIP code"},
		{Name: "country", Type: "string", MaxLength: 60},
		{Name: "jobTitle", Type: "string", Aliases: []string{"title", "position"}, MaxLength: 120},
		{Name: "department", Type: "string", MaxLength: 120},
		{Name: "specialty", Type: "string", MaxLength: 120},
		{Name: "subspecialty", Type: "string", MaxLength: 120},
		{Name: "employmentType", Type: "string", Enum: []string{"full_time", "part_time", "per_diem", "contractor", "locum"}},
		{Name: "workLocation", Type: "string", MaxLength: 200},
		{Name: "supervisorName", Type: "string", MaxLength: 120},
		{Name: "hireDate", Type: "date"},
		{Name: "startDate", Type: "date", Aliases: []string{"expectedStartDate"}},
		{Name: "npiNumber", Type: "string", Aliases: []string{"npi"}, Rule: npiRule, Message: "must be a 10 digit NPI"},
		{Name: "taxonomyCode", Type: "string", MaxLength: 20},
		{Name: "caqhId", Type: "string", Aliases: []string{"caqhProviderId"}, MaxLength: 40},
		{Name: "caqhUsername", Type: "string", MaxLength: 120},
		{Name: "caqhAttestationDate", Type: "date"},
		{Name: "medicareNumber", Type: "string", Aliases: []string{"medicarePtan"}, MaxLength: 40},
		{Name: "medicaidNumber", Type: "string", MaxLength: 40},
		{Name: "primaryLicenseNumber", Type: "string", MaxLength: 60},
		{Name: "primaryLicenseState", Type: "string", Enum: usStates},
		{Name: "malpracticeCarrier", Type: "string", MaxLength: 120},
		{Name: "malpracticePolicyNumber", Type: "string", MaxLength: 60},
		{Name: "malpracticeCoverageAmount", Type: "string", MaxLength: 60},
		{Name: "malpracticeExpirationDate", Type: "date"},
		{Name: "ehrSystem", Type: "string", MaxLength: 60},
		{Name: "ehrUsername", Type: "string", MaxLength: 120},
		{Name: "citizenshipStatus", Type: "string", Enum: []string{"citizen", "permanent_resident", "visa_holder", "other"}},
		{Name: "visaType", Type: "string", MaxLength: 20},
		{Name: "visaExpirationDate", Type: "date"},
		{Name: "languages", Type: "string", MaxLength: 200},
		{Name: "bio", Type: "text", MaxLength: 4000},
		{Name: "profilePhotoUrl", Type: "string", MaxLength: 500},
		{Name: "backgroundCheckConsent", Type: "boolean"},
		{Name: "consentAcceptedAt", Type: "timestamp"},
		{Name: "onboardingStartedAt", Type: "timestamp"},
		{Name: "lastCompletedStep", Type: "int", Aliases: []string{"currentStep"}, Rule: `value >= 0 && value <= 50`},
	},
}

// Dependent collections in reconciliation order.
var (
	Education = &Entity{
		Name:  "education",
		Table: "employee_education",
		Label: "Education",
		Fields: []Field{
			{Name: "educationType", Type: "string", Aliases: []string{"type", "level"}, MaxLength: 60},
			{Name: "institutionName", Type: "string", Aliases: []string{"schoolName", "institution", "school"}, Required: true, MaxLength: 200},
			{Name: "degree", Type: "string", MaxLength: 120},
			{Name: "fieldOfStudy", Type: "string", Aliases: []string{"major"}, MaxLength: 120},
			{Name: "startDate", Type: "date"},
			{Name: "graduationDate", Type: "date", Aliases: []string{"endDate", "completionDate"}},
			{Name: "graduationYear", Type: "int", Aliases: []string{"year"}, Rule: yearRule, Message: "must be a plausible year"},
		},
	}

	Employment = &Entity{
		Name:  "employment",
		Table: "employee_employment",
		Label: "Employment history",
		Fields: []Field{
			{Name: "employerName", Type: "string", Aliases: []string{"employer", "companyName"}, Required: true, MaxLength: 200},
			{Name: "position", Type: "string", Aliases: []string{"jobTitle", "title"}, MaxLength: 120},
			{Name: "startDate", Type: "date"},
			{Name: "endDate", Type: "date"},
			{Name: "city", Type: "string", MaxLength: 100},
			{Name: "state", Type: "string", Enum: usStates},
			{Name: "supervisorName", Type: "string", Aliases: []string{"supervisor"}, MaxLength: 120},
			{Name: "reasonForLeaving", Type: "text", MaxLength: 1000},
		},
	}

	StateLicenses = &Entity{
		Name:  "stateLicenses",
		Table: "employee_state_licenses",
		Label: "State license",
		Fields: []Field{
			{Name: "licenseNumber", Type: "string", Aliases: []string{"number", "license"}, Required: true, MaxLength: 60},
			{Name: "state", Type: "string", Aliases: []string{"licenseState"}, Enum: usStates},
			{Name: "licenseType", Type: "string", MaxLength: 60},
			{Name: "issueDate", Type: "date", Aliases: []string{"issuedDate"}},
			{Name: "expirationDate", Type: "date", Aliases: []string{"expiryDate", "expiresOn"}},
			{Name: "licenseStatus", Type: "string", Enum: []string{"active", "inactive", "expired", "pending", "revoked"}},
		},
	}

	DEALicenses = &Entity{
		Name:  "deaLicenses",
		Table: "employee_dea_licenses",
		Label: "DEA registration",
		Fields: []Field{
			{Name: "deaNumber", Type: "string", Aliases: []string{"licenseNumber", "registrationNumber"}, Required: true,
				Rule: `value matches "^[A-Za-z]{2}[0-9]{7}$"`, Message: "must be two letters followed by seven digits"},
			{Name: "state", Type: "string", Enum: usStates},
			{Name: "schedules", Type: "string", MaxLength: 60},
			{Name: "issueDate", Type: "date", Aliases: []string{"issuedDate"}},
			{Name: "expirationDate", Type: "date", Aliases: []string{"expiryDate", "expiresOn"}},
		},
	}

	BoardCertifications = &Entity{
		Name:  "boardCertifications",
		Table: "employee_board_certifications",
		Label: "Board certification",
		Fields: []Field{
			{Name: "boardName", Type: "string", Aliases: []string{"board", "certifyingBoard"}, Required: true, MaxLength: 200},
			{Name: "specialty", Type: "string", MaxLength: 120},
			{Name: "certificationNumber", Type: "string", Aliases: []string{"certificateNumber"}, MaxLength: 60},
			{Name: "issueDate", Type: "date", Aliases: []string{"certificationDate"}},
			{Name: "expirationDate", Type: "date", Aliases: []string{"expiryDate"}},
			{Name: "isLifetime", Type: "boolean", Aliases: []string{"lifetime"}},
		},
	}

	PeerReferences = &Entity{
		Name:  "peerReferences",
		Table: "employee_peer_references",
		Label: "Peer reference",
		Fields: []Field{
			{Name: "referenceName", Type: "string", Aliases: []string{"name", "fullName"}, Required: true, MaxLength: 120},
			{Name: "title", Type: "string", MaxLength: 120},
			{Name: "organization", Type: "string", MaxLength: 200},
			{Name: "email", Type: "string", MaxLength: 254, Rule: emailRule, Message: "must be a valid email address"},
			{Name: "phoneNumber", Type: "string", Aliases: []string{"phone"}, MaxLength: 40},
			{Name: "relationship", Type: "string", MaxLength: 120},
			{Name: "yearsKnown", Type: "int", Rule: `value >= 0 && value <= 80`},
		},
	}

	EmergencyContacts = &Entity{
		Name:  "emergencyContacts",
		Table: "employee_emergency_contacts",
		Label: "Emergency contact",
		Fields: []Field{
			{Name: "contactName", Type: "string", Aliases: []string{"name", "fullName"}, Required: true, MaxLength: 120},
			{Name: "relationship", Type: "string", MaxLength: 60},
			{Name: "phoneNumber", Type: "string", Aliases: []string{"phone"}, MaxLength: 40},
			{Name: "altPhoneNumber", Type: "string", Aliases: []string{"altPhone", "alternatePhone"}, MaxLength: 40},
			{Name: "email", Type: "string", MaxLength: 254, Rule: emailRule, Message: "must be a valid email address"},
			{Name: "isPrimary", Type: "boolean", Aliases: []string{"primary"}},
		},
	}

	TaxForms = &Entity{
		Name:  "taxForms",
		Table: "employee_tax_forms",
		Label: "Tax form",
		Fields: []Field{
			{Name: "formType", Type: "string", Aliases: []string{"type", "form"}, Required: true, Enum: []string{"W-4", "W-9", "I-9", "1099", "state_withholding"}},
			{Name: "taxYear", Type: "int", Aliases: []string{"year"}, Rule: yearRule, Message: "must be a plausible year"},
			{Name: "filingStatus", Type: "string", MaxLength: 60},
			{Name: "allowances", Type: "int", Rule: `value >= 0 && value <= 99`},
			{Name: "documentUrl", Type: "string", Aliases: []string{"fileUrl"}, MaxLength: 500},
			{Name: "signedAt", Type: "timestamp"},
			{Name: "submittedAt", Type: "timestamp"},
		},
	}

	Trainings = &Entity{
		Name:  "trainings",
		Table: "employee_trainings",
		Label: "Training",
		Fields: []Field{
			{Name: "trainingName", Type: "string", Aliases: []string{"name", "courseName"}, Required: true, MaxLength: 200},
			{Name: "provider", Type: "string", MaxLength: 200},
			{Name: "completionDate", Type: "date", Aliases: []string{"completedDate", "completedOn"}},
			{Name: "expirationDate", Type: "date", Aliases: []string{"expiryDate"}},
			{Name: "certificateNumber", Type: "string", MaxLength: 60},
			{Name: "hours", Type: "int", Aliases: []string{"creditHours"}, Rule: `value >= 0 && value <= 1000`},
		},
	}

	PayerEnrollments = &Entity{
		Name:  "payerEnrollments",
		Table: "employee_payer_enrollments",
		Label: "Payer enrollment",
		Fields: []Field{
			{Name: "payerName", Type: "string", Aliases: []string{"payer", "insuranceName"}, Required: true, MaxLength: 200},
			{Name: "providerId", Type: "string", Aliases: []string{"payerProviderId"}, MaxLength: 60},
			{Name: "enrollmentStatus", Type: "string", Aliases: []string{"status"}, Enum: []string{"not_started", "pending", "enrolled", "denied", "terminated"}},
			{Name: "effectiveDate", Type: "date"},
			{Name: "submittedAt", Type: "timestamp"},
			{Name: "notes", Type: "text", MaxLength: 2000},
		},
	}

	IncidentLogs = &Entity{
		Name:  "incidentLogs",
		Table: "employee_incident_logs",
		Label: "Incident log",
		Fields: []Field{
			{Name: "incidentType", Type: "string", Aliases: []string{"type", "category"}, Required: true, MaxLength: 120},
			{Name: "incidentDate", Type: "date", Aliases: []string{"date"}},
			{Name: "description", Type: "text", MaxLength: 4000},
			{Name: "resolution", Type: "text", MaxLength: 4000},
			{Name: "isResolved", Type: "boolean", Aliases: []string{"resolved"}},
			{Name: "reportedAt", Type: "timestamp"},
		},
	}
)

var dependents = []*Entity{
	Education,
	Employment,
	StateLicenses,
	DEALicenses,
	BoardCertifications,
	PeerReferences,
	EmergencyContacts,
	TaxForms,
	Trainings,
	PayerEnrollments,
	IncidentLogs,
}

func init() {
	for _, e := range dependents {
		e.OwnerColumn = EmployeeOwnerColumn
		e.ServerOwned = []string{"id", "employeeId", "createdAt", "updatedAt"}
	}
}
