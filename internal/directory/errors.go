package directory

const (
	ErrUserNotFound          = "user not found"
	ErrDoctorNotFound        = "doctor not found"
	ErrOnlyAdminCanManage    = "only an administrator can manage users"
	ErrCannotEditOtherDoctor = "a doctor can only edit its own profile"
)
