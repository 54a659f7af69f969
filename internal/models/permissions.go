package models

// Permission constants
const (
	PermissionWalletRead  = "wallet:read"
	PermissionWalletWrite = "wallet:write"

	PermissionReservationWrite = "reservation:write"

	PermissionReadAdmin  = "admin:read"
	PermissionWriteAdmin = "admin:write"
)

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionReadAdmin,
			PermissionWriteAdmin,
			PermissionWalletRead,
			PermissionWalletWrite,
			PermissionReservationWrite,
		}
	case RoleClient:
		return []string{
			PermissionWalletRead,
			PermissionWalletWrite,
			PermissionReservationWrite,
		}
	case RoleInstructor:
		return []string{
			PermissionWalletRead,
		}
	default:
		return []string{}
	}
}
