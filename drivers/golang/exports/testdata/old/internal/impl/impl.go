package impl

func InternalFunc() {}
