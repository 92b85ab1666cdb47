// Пакет rbac — логика определения роли пользователя.
// Роль вычисляется из групп IdP: участники административных групп
// получают роль admin, остальные аутентифицированные — employee.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleEmployee: 1,
	RoleAdmin:    2,
}

// MapGroupsToRole определяет роль пользователя на основе его групп IdP.
// Принадлежность к одной из adminGroups даёт роль admin,
// иначе — employee. Группы сравниваются точно, без учёта иерархии.
func MapGroupsToRole(groups []string, adminGroups []string) string {
	adminSet := toSet(adminGroups)
	for _, g := range groups {
		if adminSet[g] {
			return RoleAdmin
		}
	}
	return RoleEmployee
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// IsAdmin проверяет, достаточно ли привилегий роли для административных операций.
func IsAdmin(role string) bool {
	return roleWeight[role] >= roleWeight[RoleAdmin]
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
