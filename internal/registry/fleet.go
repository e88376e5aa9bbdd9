package registry

import "github.com/dwsmith1983/faultline/pkg/types"

func defaultFleet() []types.ServiceDescriptor {
	return []types.ServiceDescriptor{
		{
			Name:        "UserService",
			Description: "User accounts, sessions and profiles",
			Operations: []types.OperationDescriptor{
				{Name: "authenticate_user", FaultKind: types.FaultNameError, Description: "log a user in and issue a session token"},
				{Name: "get_user_profile", FaultKind: types.FaultKeyError, Description: "read a user's profile"},
				{Name: "update_user_data", FaultKind: types.FaultAttributeError, Description: "apply profile updates"},
			},
		},
		{
			Name:        "PaymentService",
			Description: "Card payments and tax calculation",
			Operations: []types.OperationDescriptor{
				{Name: "process_payment", FaultKind: types.FaultZeroDivisionError, Description: "charge a stored payment method"},
				{Name: "calculate_tax", FaultKind: types.FaultTypeError, Description: "compute regional tax for an amount"},
				{Name: "validate_card", FaultKind: types.FaultIndexError, Description: "check a card number"},
			},
		},
		{
			Name:        "DataProcessingService",
			Description: "Batch ingestion and aggregation",
			Operations: []types.OperationDescriptor{
				{Name: "process_batch", FaultKind: types.FaultFileNotFoundError, Description: "process one ingested batch"},
				{Name: "transform_data", FaultKind: types.FaultValueError, Description: "convert records between formats"},
				{Name: "aggregate_results", FaultKind: types.FaultMemoryError, Description: "aggregate processed batches"},
			},
		},
		{
			Name:        "AuthService",
			Description: "Tokens, permissions and session refresh",
			Operations: []types.OperationDescriptor{
				{Name: "generate_token", FaultKind: types.FaultImportError, Description: "issue an access token"},
				{Name: "validate_permissions", FaultKind: types.FaultRecursionError, Description: "resolve role permissions"},
				{Name: "refresh_session", FaultKind: types.FaultConnectionError, Description: "extend a session against the session store"},
			},
		},
	}
}
