package realtime

// DocumentsTopic carries changes to one owner's document namespace.
func DocumentsTopic(ownerID string) string { return "documents:" + ownerID }

// ClientsTopic carries client registrations linked to a firm.
func ClientsTopic(firmID string) string { return "clients:" + firmID }

// SessionTopic carries sign-in and sign-out events of one user.
func SessionTopic(userID string) string { return "session:" + userID }

// RevocationsTopic carries the ids of signed-out session tokens to every instance.
const RevocationsTopic = "sessions:revoked"
