package rbac

// Default policy. Students submit and read their own results; teachers author
// questions and see everything for their subject area; admins do everything.
var RolePermissions = map[string][]string{
	"student": {
		"question:view",
		"answer:submit",
		"answer:view-own",
		"result:view-own",
	},
	"teacher": {
		"question:create",
		"question:view",
		"question:view-scheme",
		"answer:view-all",
		"result:view-all",
		"result:regrade",
		"dashboard:view",
		"users:bulk_upsert",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
