package testmod

func BrokenFunc( {
