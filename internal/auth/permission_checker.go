package auth

const (
	PermShipmentsCreate = "shipments.create"
	PermShipmentsRead   = "shipments.read"
	PermDeliveryRead    = "delivery.read"
	PermDeliveryUpdate  = "delivery.update"
)

// Mode decides whether one or all of the required permissions must be held.
type Mode int

const (
	ModeAny Mode = iota
	ModeAll
)

func HasAnyPermission(userPermissions []string, requiredPermissions []string) bool {
	for _, userPerm := range userPermissions {
		for _, requiredPerm := range requiredPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

func HasAllPermissions(userPermissions []string, requiredPermissions []string) bool {
	held := make(map[string]struct{}, len(userPermissions))
	for _, p := range userPermissions {
		held[p] = struct{}{}
	}
	for _, p := range requiredPermissions {
		if _, ok := held[p]; !ok {
			return false
		}
	}
	return true
}

func satisfies(userPermissions, required []string, mode Mode) bool {
	if len(required) == 0 {
		return true
	}
	if mode == ModeAll {
		return HasAllPermissions(userPermissions, required)
	}
	return HasAnyPermission(userPermissions, required)
}
